package connectors

import (
	"fmt"
	"time"
)

// ThrottleError — мессенджер попросил притормозить (HTTP 429 + Retry-After).
// Ретрай-слой использует RetryAfter вместо стандартного бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
