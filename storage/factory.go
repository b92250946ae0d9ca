package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// Backend selects a Provider implementation.
type Backend int

const (
	BackendFile Backend = iota
	BackendMemory
	BackendBadger
	BackendBolt
	BackendPostgres
)

func (b Backend) String() string {
	switch b {
	case BackendFile:
		return "file"
	case BackendMemory:
		return "memory"
	case BackendBadger:
		return "badger"
	case BackendBolt:
		return "bolt"
	case BackendPostgres:
		return "postgres"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend maps a configuration value onto a Backend.
// "json" is accepted for file and "database" for postgres.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "json":
		return BackendFile, nil
	case "memory":
		return BackendMemory, nil
	case "badger":
		return BackendBadger, nil
	case "bolt", "boltdb":
		return BackendBolt, nil
	case "postgres", "database":
		return BackendPostgres, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Options configures Open.
type Options struct {
	Backend Backend

	// Path is the JSON file (file), directory (badger) or database file (bolt).
	Path string

	// DSN is the connection string for postgres.
	DSN string

	// Retries is the number of additional attempts for a failed Save.
	// Zero keeps the single-attempt behaviour.
	Retries int

	// RetryBackoff is the base delay of the exponential retry backoff.
	RetryBackoff time.Duration
}

// Open resolves opts into a Provider, wrapping it with WithRetry when
// retries are configured.
func Open(ctx context.Context, opts Options) (Provider, error) {
	p, err := open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.Retries > 0 {
		base := opts.RetryBackoff
		if base <= 0 {
			base = 50 * time.Millisecond
		}
		p = WithRetry(p, opts.Retries, backoff.WithTransforms(
			backoff.Exponential(base),
			linger.FullJitter,
			linger.Limiter(0, 5*time.Second),
		))
	}
	return p, nil
}

func open(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Backend {
	case BackendFile:
		return NewFileProvider(opts.Path)
	case BackendMemory:
		return NewMemoryProvider(), nil
	case BackendBadger:
		return NewBadgerProvider(opts.Path)
	case BackendBolt:
		return NewBoltProvider(opts.Path)
	case BackendPostgres:
		if opts.DSN == "" {
			return nil, ErrMissingDSN
		}
		return NewPostgresProvider(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}
