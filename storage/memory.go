package storage

import (
	"context"
	"sync"

	"delaybroker/pkg/message"
)

// MemoryProvider keeps message states in a map. Nothing survives the process.
type MemoryProvider struct {
	mu     sync.RWMutex
	data   map[string]message.Message
	closed bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]message.Message)}
}

func (m *MemoryProvider) Save(_ context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return newError(BackendMemory, "save", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(BackendMemory, "save", ErrClosed)
	}
	m.data[msg.ID] = msg
	return nil
}

func (m *MemoryProvider) LoadAll(_ context.Context) ([]message.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError(BackendMemory, "load", ErrClosed)
	}
	res := make([]message.Message, 0, len(m.data))
	for _, msg := range m.data {
		res = append(res, msg)
	}
	return res, nil
}

func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
