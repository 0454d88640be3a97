package ml

import (
	"strconv"
	"strings"
)

const (
	// Approved is the decoded form of class 1.
	Approved = "Y"
	// Rejected is the decoded form of class 0.
	Rejected = "N"
)

// DecodePrediction maps a class index to its human-readable label.
func DecodePrediction(class int) string {
	if class == 1 {
		return Approved
	}
	return Rejected
}

// EncodeLabels converts the outcome column to 0/1. Values may be numeric (0 or 1)
// or one of positive/negative.
func EncodeLabels(column string, values []string, positive, negative string) ([]int, error) {
	labels := make([]int, len(values))
	for i, raw := range values {
		raw = strings.TrimSpace(raw)
		switch raw {
		case positive:
			labels[i] = 1
			continue
		case negative:
			labels[i] = 0
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || (f != 0 && f != 1) {
			return nil, &InvalidValueError{Column: column, Value: raw, Reason: "label must be 0, 1, " + positive + " or " + negative}
		}
		labels[i] = int(f)
	}
	return labels, nil
}
