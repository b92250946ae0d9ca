package broker

import (
	"context"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"delaybroker/pkg/message"
)

// RunWorker dequeues and delivers messages until ctx is canceled or the
// broker is closed and drained.
//
// The delay wait only blocks this worker. A message whose wait is
// interrupted by cancellation is abandoned, not requeued. Persistence and
// observer failures after delivery are logged and the loop continues.
func (b *Broker) RunWorker(ctx context.Context, workerID int) error {
	log := b.logger.WithField("worker", workerID)
	log.Debug("worker started")

	for {
		msg, err := b.queue.Pop(ctx)
		if err != nil {
			log.WithError(err).Debug("worker stopped")
			return err
		}
		b.metrics.setDepth(b.queue.Len())

		if err := b.deliver(ctx, log.WithField("message_id", msg.ID), msg); err != nil {
			log.WithError(err).Debug("worker stopped")
			return err
		}
	}
}

// deliver waits, stamps, persists and notifies. It only returns an error
// when the wait was interrupted.
func (b *Broker) deliver(ctx context.Context, log logrus.FieldLogger, msg message.Message) error {
	d := b.strategy.Next()
	if d < 0 {
		d = 0
	}

	ctx, span := tracer.Start(ctx, "Broker.deliver", trace.WithAttributes(
		attribute.String("message.id", msg.ID),
		attribute.Int64("delay.ms", d.Milliseconds()),
	))
	defer span.End()

	log.WithField("delay", d).Debug("message dequeued")

	if err := linger.Sleep(ctx, d); err != nil {
		log.WithError(err).Warn("delivery abandoned")
		span.SetStatus(codes.Error, "abandoned")
		return err
	}

	at := b.now()
	if at.Before(msg.SentAt) {
		at = msg.SentAt
	}
	delivered, err := msg.Delivered(at)
	if err != nil {
		log.WithError(err).Error("cannot stamp delivery")
		span.RecordError(err)
		return nil
	}
	b.metrics.observeDelivered(d)

	if err := b.store.Save(ctx, delivered); err != nil {
		b.metrics.incPersistFailed()
		span.RecordError(err)
		log.WithError(err).Error("failed to persist delivered message")
	}

	if err := b.notify(ctx, delivered, d); err != nil {
		errs := multierr.Errors(err)
		b.metrics.addNotifyFailed(len(errs))
		span.RecordError(err)
		for _, e := range errs {
			log.WithError(e).Warn("observer notification failed")
		}
	}

	log.WithFields(logrus.Fields{
		"sender":    delivered.Sender,
		"recipient": delivered.Recipient,
		"delay":     d,
		"latency":   time.Since(msg.SentAt),
	}).Info("message delivered")

	return nil
}
