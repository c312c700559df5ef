package domain

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch signals a vector whose dimension disagrees with
// the index. Always wrapped in a ConfigurationError: it means the
// deployment is wrong, not the email.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingFailure marks an attempt that died calling the embedding
// provider.
type EmbeddingFailure struct {
	Err error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingFailure) Unwrap() error { return e.Err }

// ClassificationFailure marks an attempt that died in the classifier.
type ClassificationFailure struct {
	Err error
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationFailure) Unwrap() error { return e.Err }

// PersistenceFailure marks an attempt that died writing or reading
// storage.
type PersistenceFailure struct {
	Err error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

// ConfigurationError marks a fatal misconfiguration. Unlike the
// per-attempt failures above, retrying will not help until the
// deployment is fixed.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewDimensionMismatch builds the ConfigurationError for a vector of
// dimension got arriving at an index of dimension want.
func NewDimensionMismatch(want, got int) *ConfigurationError {
	return &ConfigurationError{
		Msg: fmt.Sprintf("expected dimension %d, got %d", want, got),
		Err: ErrDimensionMismatch,
	}
}
