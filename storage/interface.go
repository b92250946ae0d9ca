package storage

import (
	"context"

	"delaybroker/pkg/message"
)

// Provider defines the interface for a message persistence backend.
//
// Save must be safe to call concurrently and repeatedly for the same message
// ID; later calls replace the stored state.
type Provider interface {
	// Save upserts the full current state of msg, keyed by its ID.
	Save(ctx context.Context, msg message.Message) error

	// LoadAll returns every stored message state. Order is unspecified.
	LoadAll(ctx context.Context) ([]message.Message, error)

	// Close releases the backend's resources.
	Close() error
}
