package intake

import (
	"context"
	"errors"
	"time"
)

// Errors that end processing without further attempts.
var (
	// ErrMalformedEvent marks a payload that cannot be decoded. Such events are
	// dead-lettered immediately so the original bytes are preserved.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrOwnerNotResolved marks an event whose owning member could not be
	// determined. Such events are logged, acknowledged and dropped.
	ErrOwnerNotResolved = errors.New("owner not resolved")
)

// permanentError wraps an error that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// RetryPolicy bounds how often a failing event is attempted before it is
// routed to its dead-letter topic.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is the fixed pause between attempts and between dead-letter
	// publish retries.
	Backoff time.Duration
	// DeadLetterSuffix is appended to the source topic to name its DLQ.
	DeadLetterSuffix string
}

// DefaultRetryPolicy returns three attempts one second apart with ".dlq"
// dead-letter topics.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second, DeadLetterSuffix: ".dlq"}
}

// DeadLetterTopic names the dead-letter topic for topic.
func (p RetryPolicy) DeadLetterTopic(topic string) string {
	suffix := p.DeadLetterSuffix
	if suffix == "" {
		suffix = ".dlq"
	}
	return topic + suffix
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// sleepCtx waits d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
