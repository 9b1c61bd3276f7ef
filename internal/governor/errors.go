package governor

import (
	"fmt"
	"time"
)

// CircuitOpenError rejects a call attempted while the breaker is open and
// the caller's deadline lands before the recovery timeout. Err carries the
// context error when the caller was cancelled during the wait.
type CircuitOpenError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry in %s", e.RetryAfter.Round(time.Millisecond))
}

func (e *CircuitOpenError) Unwrap() error { return e.Err }

// ThrottledError reports that no slot could be granted within the caller's
// deadline. Stage names the gate that could not be passed; Err carries the
// context error when the caller was cancelled during the wait.
type ThrottledError struct {
	Stage string
	Wait  time.Duration
	Err   error
}

func (e *ThrottledError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("throttled at %s, next slot in %s", e.Stage, e.Wait.Round(time.Millisecond))
	}
	return fmt.Sprintf("throttled at %s", e.Stage)
}

func (e *ThrottledError) Unwrap() error { return e.Err }
