package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"delaybroker/pkg/message"
)

// FileProvider stores all messages as a single JSON array document.
//
// Every Save reads the whole document, upserts the message and writes the
// document back. mu serializes that read-modify-write cycle; without it two
// workers saving concurrently would lose one of the updates.
type FileProvider struct {
	path string

	mu     sync.Mutex
	closed bool
}

// NewFileProvider opens the document at path, creating an empty one if
// none exists.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, newError(BackendFile, "open", errors.New("path is empty"))
	}
	p := &FileProvider{path: filepath.Clean(path)}
	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FileProvider) init() error {
	if _, err := os.Stat(p.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return newError(BackendFile, "init", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return newError(BackendFile, "init", err)
	}
	return newError(BackendFile, "init", p.write(nil))
}

// Save upserts msg into the document.
func (p *FileProvider) Save(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return newError(BackendFile, "save", err)
	}
	if err := ctx.Err(); err != nil {
		return newError(BackendFile, "save", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return newError(BackendFile, "save", ErrClosed)
	}

	messages, err := p.read()
	if err != nil {
		return newError(BackendFile, "save", err)
	}

	replaced := false
	for i := range messages {
		if messages[i].ID == msg.ID {
			messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		messages = append(messages, msg)
	}

	return newError(BackendFile, "save", p.write(messages))
}

// LoadAll returns every message in the document.
func (p *FileProvider) LoadAll(ctx context.Context) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(BackendFile, "load", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, newError(BackendFile, "load", ErrClosed)
	}

	messages, err := p.read()
	if err != nil {
		return nil, newError(BackendFile, "load", err)
	}
	return messages, nil
}

// Close marks the provider closed. The document is left on disk.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Path returns the location of the document.
func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) read() ([]message.Message, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var messages []message.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("malformed document %s: %w", p.path, err)
	}
	return messages, nil
}

// write replaces the document atomically via a temp file and rename.
func (p *FileProvider) write(messages []message.Message) error {
	if messages == nil {
		messages = []message.Message{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
