// Package broker implements an in-process message broker. Published messages
// are persisted, queued and handed to a pool of workers, each of which waits
// for a strategy-chosen delay before marking the message delivered and
// notifying every registered observer.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"delaybroker/pkg/delay"
	"delaybroker/pkg/logging"
	"delaybroker/pkg/message"
	"delaybroker/storage"
)

var tracer = otel.Tracer("delaybroker/pkg/broker")

// Broker coordinates persistence, queueing, delay and notification.
type Broker struct {
	queue    *fifo
	store    storage.Provider
	strategy delay.Strategy

	// closeMu is held shared from the closed check through the push, so
	// Close never lands between a successful persist and its enqueue.
	closeMu sync.RWMutex

	mu        sync.RWMutex
	observers map[Observer]struct{}

	logger  logrus.FieldLogger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger used by the broker and its workers.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Broker) { b.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// WithClock overrides the time source used for delivery timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// New returns a broker backed by store, delaying deliveries with strategy.
func New(store storage.Provider, strategy delay.Strategy, opts ...Option) *Broker {
	b := &Broker{
		queue:     newFIFO(),
		store:     store,
		strategy:  strategy,
		observers: make(map[Observer]struct{}),
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish persists msg and then enqueues it. If persisting fails the error
// is returned and the message is not enqueued.
func (b *Broker) Publish(ctx context.Context, msg message.Message) error {
	ctx, span := tracer.Start(ctx, "Broker.Publish", trace.WithAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.sender", msg.Sender),
	))
	defer span.End()

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.queue.isClosed() {
		return ErrClosed
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.IsDelivered() {
		return fmt.Errorf("publish %s: %w", msg.ID, message.ErrAlreadyDelivered)
	}

	if err := b.store.Save(ctx, msg); err != nil {
		b.metrics.incPublishFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return fmt.Errorf("publish %s: %w", msg.ID, err)
	}

	if err := b.queue.Push(msg); err != nil {
		return err
	}

	b.metrics.incPublished()
	b.metrics.setDepth(b.queue.Len())
	b.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"sender":     msg.Sender,
		"recipient":  msg.Recipient,
	}).Debug("message published")

	return nil
}

// Pending returns the number of messages waiting to be dequeued.
func (b *Broker) Pending() int {
	return b.queue.Len()
}

// Close stops accepting new messages. It waits for publishes already past
// the closed check to finish enqueueing. Workers keep draining what is
// already queued and return ErrClosed once the queue is empty.
func (b *Broker) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	b.queue.Close()
	return nil
}

// Run starts n workers and blocks until all of them have stopped. It returns
// nil when the broker was closed and drained, or the first worker error
// (usually the context's).
func (b *Broker) Run(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", n)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= n; i++ {
		id := i
		g.Go(func() error {
			err := b.RunWorker(ctx, id)
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
