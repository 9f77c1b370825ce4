package categorizer

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExhausted is returned when the remote service refuses further
	// calls for this run. It is never retried.
	ErrQuotaExhausted = errors.New("remote quota exhausted")
	// ErrMissingInput is returned when the input entity file does not exist.
	ErrMissingInput = errors.New("input file not found")
)

// TransientError wraps any other remote failure. The batch yields no results
// and the next batch is still attempted.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
