package indexer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter marks bad chunking arguments supplied by the caller.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrFetch marks a document that could not be retrieved.
	ErrFetch = errors.New("fetch failed")
)

// InvalidParameterError names the constraint that was violated.
type InvalidParameterError struct {
	Constraint string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidParameter, e.Constraint)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// FetchError describes a failed fetch of one URL. Status is the HTTP status
// when the server answered, 0 otherwise.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}
