package llm

import (
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model host unavailable: %v", e.Err)
	}
	return "model host unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrModelNotFound indicates the host does not have the requested model.
type ErrModelNotFound struct {
	Model string
	Err   error
}

func (e *ErrModelNotFound) Error() string {
	return fmt.Sprintf("model %q is not installed", e.Model)
}

func (e *ErrModelNotFound) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the host sent a stream the client could
// not interpret.
type ErrInvalidResponse struct {
	Err error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid model response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }
