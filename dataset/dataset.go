// Package dataset reads and writes the tabular files the trainer and batch predictor work on.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Dataset is an ordered table of raw string cells. Every row has len(Columns) cells.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Index returns the position of column, or -1.
func (d *Dataset) Index(column string) int {
	for i, name := range d.Columns {
		if name == column {
			return i
		}
	}
	return -1
}

// Has reports whether column exists.
func (d *Dataset) Has(column string) bool {
	return d.Index(column) >= 0
}

// Column returns a copy of one column's values.
func (d *Dataset) Column(column string) ([]string, error) {
	idx := d.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Record returns row i as a column -> value map.
func (d *Dataset) Record(i int) map[string]string {
	record := make(map[string]string, len(d.Columns))
	for j, name := range d.Columns {
		record[name] = d.Rows[i][j]
	}
	return record
}

// AppendColumn returns a new dataset with column added last. The receiver is left untouched.
func (d *Dataset) AppendColumn(column string, values []string) (*Dataset, error) {
	if len(values) != len(d.Rows) {
		return nil, fmt.Errorf("column %q has %d values for %d rows", column, len(values), len(d.Rows))
	}
	if d.Has(column) {
		return nil, fmt.Errorf("column %q already exists", column)
	}

	columns := make([]string, 0, len(d.Columns)+1)
	columns = append(columns, d.Columns...)
	columns = append(columns, column)

	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		next := make([]string, 0, len(row)+1)
		next = append(next, row...)
		rows[i] = append(next, values[i])
	}
	return &Dataset{Columns: columns, Rows: rows}, nil
}

// missingValues are the cell spellings read as a missing value, after trimming.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether v stands for a missing value.
func IsMissing(v string) bool {
	_, ok := missingValues[strings.TrimSpace(v)]
	return ok
}

// IsNumeric reports whether every non-missing value parses as a float and at least one is present.
func IsNumeric(values []string) bool {
	seen := false
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// newDataset takes the first non-empty record as the header. Later records are kept as read,
// including all-empty ones, so a table keeps one row per input line.
func newDataset(records [][]string) (*Dataset, error) {
	var header []string
	rows := make([][]string, 0, len(records))
	for line, record := range records {
		if len(record) == 0 {
			continue
		}
		if header == nil {
			if isEmptyRow(record) {
				continue
			}
			header = cleanHeader(record)
			if err := checkHeader(header); err != nil {
				return nil, err
			}
			continue
		}
		if len(record) > len(header) {
			if !isEmptyRow(record[len(header):]) {
				return nil, fmt.Errorf("row %d has %d fields, header has %d", line+1, len(record), len(header))
			}
			record = record[:len(header)]
		}
		row := make([]string, len(header))
		copy(row, record)
		rows = append(rows, row)
	}
	if header == nil {
		return nil, fmt.Errorf("no header row found")
	}
	return &Dataset{Columns: header, Rows: rows}, nil
}

func cleanHeader(record []string) []string {
	header := make([]string, len(record))
	for i, name := range record {
		header[i] = strings.TrimSpace(name)
	}
	// spreadsheets often leave trailing empty header cells
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	return header
}

func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		if name == "" {
			return fmt.Errorf("header column %d is empty", i+1)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func isEmptyRow(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
