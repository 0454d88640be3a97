package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
)

// Write stores ds as CSV or XLSX depending on the extension of path.
// Content goes to a temporary file that is renamed into place, so a failed write leaves no output.
func Write(path string, ds *Dataset) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	var encode func(io.Writer, *Dataset) error
	switch ext {
	case ".csv":
		encode = WriteCSV
	case ".xlsx":
		encode = writeExcel
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	err = encode(tmp, ds)
	err = multierr.Append(err, tmp.Close())
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV encodes ds as CSV with a header row.
func WriteCSV(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(ds.Rows); err != nil {
		return err
	}
	return writer.Error()
}

func writeExcel(w io.Writer, ds *Dataset) (err error) {
	f := excelize.NewFile()
	defer func() { err = multierr.Append(err, f.Close()) }()

	sheet := f.GetSheetName(0)
	if err := setRow(f, sheet, 1, ds.Columns); err != nil {
		return err
	}
	for i, row := range ds.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, line int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}
