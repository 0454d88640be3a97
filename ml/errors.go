package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory marks a categorical value that no encoder was fitted on.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrMissingColumn marks an input record lacking an expected column.
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidValue marks a value that cannot be used for its column.
	ErrInvalidValue = errors.New("invalid value")
	// ErrArtifact wraps every failure to read, decode or write a model or encoder file.
	ErrArtifact = errors.New("artifact error")
)

type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("column %q: unseen value %q", e.Column, e.Value)
}

func (e *UnknownCategoryError) Is(target error) bool { return target == ErrUnknownCategory }

type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

type InvalidValueError struct {
	Column string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("column %q: invalid value %q: %s", e.Column, e.Value, e.Reason)
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }

// IsInputError reports whether err was caused by the caller's data rather than the artifacts.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrInvalidValue)
}

func artifactError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrArtifact, path, err)
}
