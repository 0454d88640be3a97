package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// LabelEncoder maps the distinct values of one categorical column to 0..n-1 in sorted order.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

// FitLabelEncoder learns the sorted distinct values of column.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	enc := &LabelEncoder{Classes: classes}
	enc.buildIndex()
	return enc
}

// Transform returns the code for value, or an *UnknownCategoryError tagged with column.
func (e *LabelEncoder) Transform(column, value string) (int, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, &UnknownCategoryError{Column: column, Value: value}
	}
	return code, nil
}

// Inverse returns the value encoded as code.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("code %d out of range [0, %d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, class := range e.Classes {
		e.index[class] = i
	}
}

// checkClasses rejects class lists that could not have come from FitLabelEncoder.
func (e *LabelEncoder) checkClasses() error {
	for i := 1; i < len(e.Classes); i++ {
		if e.Classes[i-1] >= e.Classes[i] {
			return fmt.Errorf("classes are not sorted and distinct at %q", e.Classes[i])
		}
	}
	return nil
}

// EncoderTable holds one fitted encoder per categorical column. Read-only after fitting.
type EncoderTable map[string]*LabelEncoder

// Columns returns the encoded column names in sorted order.
func (t EncoderTable) Columns() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode transforms value through the encoder registered for column.
func (t EncoderTable) Encode(column, value string) (int, error) {
	enc, ok := t[column]
	if !ok {
		return 0, fmt.Errorf("no encoder for column %q", column)
	}
	return enc.Transform(column, value)
}

// Decode maps code back to its original value for column.
func (t EncoderTable) Decode(column string, code int) (string, error) {
	enc, ok := t[column]
	if !ok {
		return "", fmt.Errorf("no encoder for column %q", column)
	}
	return enc.Inverse(code)
}

// SaveEncoders writes the table as JSON.
func SaveEncoders(path string, table EncoderTable) error {
	payload, err := marshalEncoders(path, table)
	if err != nil {
		return err
	}
	return writeFiles(&artifactFile{path: path, payload: payload})
}

func marshalEncoders(path string, table EncoderTable) ([]byte, error) {
	payload, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return nil, artifactError(path, err)
	}
	return payload, nil
}

// LoadEncoders reads a table written by SaveEncoders.
func LoadEncoders(path string) (EncoderTable, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, artifactError(path, err)
	}
	var table EncoderTable
	if err := json.Unmarshal(payload, &table); err != nil {
		return nil, artifactError(path, err)
	}
	if table == nil {
		return nil, artifactError(path, errors.New("empty encoder table"))
	}
	for column, enc := range table {
		if enc == nil {
			return nil, artifactError(path, fmt.Errorf("column %q has no encoder", column))
		}
		if err := enc.checkClasses(); err != nil {
			return nil, artifactError(path, fmt.Errorf("column %q: %w", column, err))
		}
		enc.buildIndex()
	}
	return table, nil
}
