package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"go.uber.org/multierr"

	"delaybroker/pkg/message"
)

// retrying retries failed saves with backoff. LoadAll and Close pass through.
type retrying struct {
	Provider
	attempts int
	backoff  backoff.Strategy
}

// WithRetry wraps p so that a failed Save is retried up to retries more
// times, sleeping according to s between attempts. Context cancellation
// stops retrying immediately.
func WithRetry(p Provider, retries int, s backoff.Strategy) Provider {
	if retries <= 0 {
		return p
	}
	if s == nil {
		s = backoff.Exponential(50 * time.Millisecond)
	}
	return &retrying{Provider: p, attempts: retries + 1, backoff: s}
}

func (r *retrying) Save(ctx context.Context, msg message.Message) error {
	var err error
	for n := 0; n < r.attempts; n++ {
		e := r.Provider.Save(ctx, msg)
		if e == nil {
			return nil
		}
		err = multierr.Append(err, e)

		if n == r.attempts-1 || errors.Is(e, ErrClosed) || errors.Is(e, message.ErrEmptyID) {
			break
		}
		if serr := linger.Sleep(ctx, r.backoff(e, uint(n))); serr != nil {
			return multierr.Append(err, serr)
		}
	}
	return err
}

// Unwrap returns the wrapped provider.
func (r *retrying) Unwrap() Provider { return r.Provider }
