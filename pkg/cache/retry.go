package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound marks a dataset source that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork marks transport failures and 5xx responses.
	ErrNetwork = errors.New("network error")
)

// transientError marks a failure worth another attempt.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Transient(nil) is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with [Transient].
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Backoff is a retry policy for dataset fetches. Delay doubles after every
// failed attempt and is capped at Max when Max is positive.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	Max      time.Duration
}

// DefaultBackoff tries three times, waiting 1s and then 2s.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second, Max: 30 * time.Second}

// Do calls fn until it succeeds, fails permanently or the attempts run out.
// Only errors marked with [Transient] are retried; the last error is
// returned unchanged.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !IsTransient(err) || attempt >= b.Attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
}
