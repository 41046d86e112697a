package embedding

import (
	"errors"
	"fmt"
)

var errShutdown = errors.New("embedding service shut down")

// ErrUnavailable indicates the embedding model could not be constructed or
// a call to it failed. Callers degrade instead of failing.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding unavailable: %v", e.Err)
	}
	return "embedding unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is or wraps an *ErrUnavailable.
func IsUnavailable(err error) bool {
	var u *ErrUnavailable
	return errors.As(err, &u)
}
