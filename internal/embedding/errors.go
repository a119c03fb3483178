package embedding

import (
	"errors"
	"fmt"
)

// ErrEmbedding marks any failure to turn text into vectors.
var ErrEmbedding = errors.New("embedding failed")

// Error wraps a provider failure with the provider's name.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrEmbedding, e.Provider, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrEmbedding, e.Err} }

// Wrap turns err into an *Error attributed to provider unless it already is one
func Wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	return &Error{Provider: provider, Err: err}
}
