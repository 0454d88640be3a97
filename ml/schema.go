package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"loanscore/dataset"
)

// Schema describes how a raw record becomes a feature vector.
type Schema struct {
	IDColumn    string             `json:"id_column"`
	LabelColumn string             `json:"label_column"`
	Features    []string           `json:"features"`
	Categorical map[string]bool    `json:"categorical"`
	Medians     map[string]float64 `json:"medians"`
}

// FitSchema fits an encoder for every non-numeric feature column of ds and records
// the median of every numeric one. idColumn and labelColumn are excluded from the features.
func FitSchema(ds *dataset.Dataset, idColumn, labelColumn string) (*Schema, EncoderTable, error) {
	schema := &Schema{
		IDColumn:    idColumn,
		LabelColumn: labelColumn,
		Features:    make([]string, 0, len(ds.Columns)),
		Categorical: make(map[string]bool),
		Medians:     make(map[string]float64),
	}
	encoders := make(EncoderTable)

	for _, column := range ds.Columns {
		if column == idColumn || column == labelColumn {
			continue
		}
		values, err := ds.Column(column)
		if err != nil {
			return nil, nil, err
		}
		schema.Features = append(schema.Features, column)
		if dataset.IsNumeric(values) {
			schema.Medians[column] = median(parseNumbers(values))
			continue
		}
		schema.Categorical[column] = true
		for i, v := range values {
			values[i] = category(v)
		}
		encoders[column] = FitLabelEncoder(values)
	}
	return schema, encoders, nil
}

// Validate checks that every categorical feature has an encoder.
func (s *Schema) Validate(encoders EncoderTable) error {
	if s == nil {
		return errors.New("schema is nil")
	}
	for _, column := range s.Features {
		if !s.Categorical[column] {
			continue
		}
		if _, ok := encoders[column]; !ok {
			return fmt.Errorf("no encoder for categorical column %q", column)
		}
	}
	return nil
}

// Vector builds the feature vector for one record. Extra keys in record are ignored.
func (s *Schema) Vector(record map[string]string, encoders EncoderTable) ([]float64, error) {
	vector := make([]float64, len(s.Features))
	for i, column := range s.Features {
		raw, ok := record[column]
		if !ok {
			return nil, &MissingColumnError{Column: column}
		}
		if s.Categorical[column] {
			code, err := encoders.Encode(column, category(raw))
			if err != nil {
				return nil, err
			}
			vector[i] = float64(code)
			continue
		}
		value, err := s.numeric(column, raw)
		if err != nil {
			return nil, err
		}
		vector[i] = value
	}
	return vector, nil
}

// Matrix builds one vector per dataset row, failing on the first bad row.
func (s *Schema) Matrix(ds *dataset.Dataset, encoders EncoderTable) ([][]float64, error) {
	for _, column := range s.Features {
		if !ds.Has(column) {
			return nil, &MissingColumnError{Column: column}
		}
	}
	matrix := make([][]float64, ds.Len())
	for i := range ds.Rows {
		vector, err := s.Vector(ds.Record(i), encoders)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		matrix[i] = vector
	}
	return matrix, nil
}

// category folds surrounding space and the missing-value spellings into one class.
func category(raw string) string {
	if dataset.IsMissing(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}

func (s *Schema) numeric(column, raw string) (float64, error) {
	if dataset.IsMissing(raw) {
		return s.Medians[column], nil
	}
	raw = strings.TrimSpace(raw)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &InvalidValueError{Column: column, Value: raw, Reason: "not a number"}
	}
	switch {
	case math.IsNaN(value):
		return s.Medians[column], nil
	case math.IsInf(value, 0):
		return 0, &InvalidValueError{Column: column, Value: raw, Reason: "not a finite number"}
	}
	return value, nil
}

func parseNumbers(values []string) []float64 {
	numbers := make([]float64, 0, len(values))
	for _, v := range values {
		if dataset.IsMissing(v) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		numbers = append(numbers, f)
	}
	return numbers
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
