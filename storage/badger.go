package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"delaybroker/pkg/message"
)

const messagePrefix = "m:"

// BadgerProvider implements Provider using BadgerDB, one key per message.
type BadgerProvider struct {
	db        *badger.DB
	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewBadgerProvider opens (or creates) a BadgerDB database in dataDir.
func NewBadgerProvider(dataDir string) (*BadgerProvider, error) {
	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, newError(BackendBadger, "open", err)
	}

	p := &BadgerProvider{db: db, stop: make(chan struct{})}

	go p.runGC()

	return p, nil
}

// runGC runs the value log garbage collector periodically
func (p *BadgerProvider) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			_ = p.db.RunValueLogGC(0.7)
		}
	}
}

// Save upserts msg under its ID.
func (p *BadgerProvider) Save(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return newError(BackendBadger, "save", err)
	}
	if err := ctx.Err(); err != nil {
		return newError(BackendBadger, "save", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return newError(BackendBadger, "save", err)
	}

	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messagePrefix+msg.ID), data)
	})
	return newError(BackendBadger, "save", err)
}

// LoadAll iterates every message key.
func (p *BadgerProvider) LoadAll(ctx context.Context) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(BackendBadger, "load", err)
	}

	var messages []message.Message

	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg message.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, newError(BackendBadger, "load", err)
	}
	return messages, nil
}

// Close stops the GC loop and closes the database.
func (p *BadgerProvider) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.closeErr = newError(BackendBadger, "close", p.db.Close())
	})
	return p.closeErr
}
