package queue

import (
	"context"
	"sort"

	"delaybroker/pkg/message"
	"delaybroker/storage"
)

// History reads persisted message states.
type History struct {
	s storage.Provider
}

func NewHistory(s storage.Provider) *History { return &History{s: s} }

// All returns every stored message, oldest first.
func (h *History) All(ctx context.Context) ([]message.Message, error) {
	messages, err := h.s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
	return messages, nil
}

// Pending returns stored messages that were never delivered.
func (h *History) Pending(ctx context.Context) ([]message.Message, error) {
	return h.filter(ctx, func(m message.Message) bool { return !m.IsDelivered() })
}

// Delivered returns stored messages that carry a delivery timestamp.
func (h *History) Delivered(ctx context.Context) ([]message.Message, error) {
	return h.filter(ctx, message.Message.IsDelivered)
}

// Get returns the stored state of one message.
func (h *History) Get(ctx context.Context, id string) (message.Message, bool, error) {
	messages, err := h.s.LoadAll(ctx)
	if err != nil {
		return message.Message{}, false, err
	}
	for _, m := range messages {
		if m.ID == id {
			return m, true, nil
		}
	}
	return message.Message{}, false, nil
}

func (h *History) filter(ctx context.Context, keep func(message.Message) bool) ([]message.Message, error) {
	all, err := h.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out, nil
}
