package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"delaybroker/pkg/message"
)

var messagesBucket = []byte("messages")

// BoltProvider implements Provider using a single BoltDB bucket.
type BoltProvider struct {
	db *bbolt.DB
}

// NewBoltProvider opens (or creates) the BoltDB file at path.
func NewBoltProvider(path string) (*BoltProvider, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError(BackendBolt, "open", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, newError(BackendBolt, "open", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, newError(BackendBolt, "open", err)
	}

	return &BoltProvider{db: db}, nil
}

// Save upserts msg under its ID.
func (p *BoltProvider) Save(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return newError(BackendBolt, "save", err)
	}
	if err := ctx.Err(); err != nil {
		return newError(BackendBolt, "save", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return newError(BackendBolt, "save", err)
	}

	err = p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(messagesBucket).Put([]byte(msg.ID), data)
	})
	return newError(BackendBolt, "save", err)
}

// LoadAll returns every message in the bucket.
func (p *BoltProvider) LoadAll(ctx context.Context) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(BackendBolt, "load", err)
	}

	var messages []message.Message

	err := p.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(messagesBucket).ForEach(func(_, v []byte) error {
			var msg message.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}
			messages = append(messages, msg)
			return nil
		})
	})
	if err != nil {
		return nil, newError(BackendBolt, "load", err)
	}
	return messages, nil
}

func (p *BoltProvider) Close() error {
	return newError(BackendBolt, "close", p.db.Close())
}
