package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"delaybroker/pkg/broker"
	"delaybroker/pkg/logging"
	"delaybroker/pkg/message"
)

// DeliveryFunc is called for each delivered message sent by a Producer.
type DeliveryFunc func(msg message.Message, delay time.Duration)

// Producer publishes messages on behalf of one sender.
//
// The broker notifies every observer of every delivery, so a subscribed
// Producer ignores notifications for messages it did not send.
type Producer struct {
	id     string
	b      *broker.Broker
	logger logrus.FieldLogger

	onDelivered DeliveryFunc

	sent      atomic.Int64
	delivered atomic.Int64
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerLogger sets the producer's logger.
func WithProducerLogger(l logrus.FieldLogger) ProducerOption {
	return func(p *Producer) { p.logger = l }
}

// OnDelivered sets a callback for deliveries of the producer's own messages.
func OnDelivered(fn DeliveryFunc) ProducerOption {
	return func(p *Producer) { p.onDelivered = fn }
}

func NewProducer(id string, b *broker.Broker, opts ...ProducerOption) *Producer {
	p := &Producer{id: id, b: b, logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithField("producer", id)
	return p
}

// ID returns the sender identifier.
func (p *Producer) ID() string { return p.id }

// Subscribe registers the producer for delivery notifications.
func (p *Producer) Subscribe() error {
	return p.b.RegisterObserver(p)
}

// Unsubscribe stops delivery notifications.
func (p *Producer) Unsubscribe() {
	p.b.UnregisterObserver(p)
}

// Send creates a message to recipient and publishes it.
func (p *Producer) Send(ctx context.Context, recipient, content string) (message.Message, error) {
	msg := message.New(content, p.id, recipient)
	if err := p.b.Publish(ctx, msg); err != nil {
		return message.Message{}, err
	}
	p.sent.Add(1)
	p.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"recipient":  recipient,
	}).Debug("message sent")
	return msg, nil
}

// Notify implements broker.Observer.
func (p *Producer) Notify(_ context.Context, msg message.Message, delay time.Duration) error {
	if msg.Sender != p.id {
		return nil
	}
	p.delivered.Add(1)

	p.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"recipient":  msg.Recipient,
		"delay":      delay,
	}).Info("message delivered")

	if p.onDelivered != nil {
		p.onDelivered(msg, delay)
	}
	return nil
}

// Sent returns how many messages were published successfully.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Delivered returns how many of the producer's messages were delivered.
func (p *Producer) Delivered() int64 { return p.delivered.Load() }
