package queue

import (
	"context"

	"delaybroker/pkg/broker"
)

// Consumer drains the broker queue as one named worker.
type Consumer struct {
	id int
	b  *broker.Broker
}

func NewConsumer(id int, b *broker.Broker) *Consumer { return &Consumer{id: id, b: b} }

// ID returns the worker identifier.
func (c *Consumer) ID() int { return c.id }

// Run blocks delivering messages until ctx is canceled or the broker is
// closed and drained.
func (c *Consumer) Run(ctx context.Context) error {
	return c.b.RunWorker(ctx, c.id)
}
