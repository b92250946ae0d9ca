package broker

import (
	"context"
	"sync"

	"delaybroker/pkg/message"
)

// fifo is an unbounded queue whose Pop blocks while it is empty.
//
// ready is closed and replaced on every push, waking all waiting poppers;
// the one that wins mu takes the item and the rest wait again.
type fifo struct {
	mu     sync.Mutex
	items  []message.Message
	ready  chan struct{}
	closed bool
}

func newFIFO() *fifo {
	return &fifo{ready: make(chan struct{})}
}

func (q *fifo) Push(msg message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, msg)
	close(q.ready)
	q.ready = make(chan struct{})
	return nil
}

// Pop removes the oldest message, waiting for one if necessary. After Close
// the remaining messages are still handed out; ErrClosed is returned once
// the queue is empty.
func (q *fifo) Pop(ctx context.Context) (message.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return message.Message{}, err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = message.Message{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return message.Message{}, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		case <-ready:
		}
	}
}

func (q *fifo) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fifo) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

func (q *fifo) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
