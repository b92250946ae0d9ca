package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delaybroker/pkg/message"
)

type providerFactory func(t *testing.T) Provider

func providerFactories() map[string]providerFactory {
	return map[string]providerFactory{
		"file": func(t *testing.T) Provider {
			p, err := NewFileProvider(filepath.Join(t.TempDir(), "messages.json"))
			require.NoError(t, err)
			return p
		},
		"memory": func(t *testing.T) Provider {
			return NewMemoryProvider()
		},
		"badger": func(t *testing.T) Provider {
			p, err := NewBadgerProvider(t.TempDir())
			require.NoError(t, err)
			return p
		},
		"bolt": func(t *testing.T) Provider {
			p, err := NewBoltProvider(filepath.Join(t.TempDir(), "messages.db"))
			require.NoError(t, err)
			return p
		},
		"postgres": func(t *testing.T) Provider {
			dsn := os.Getenv("DELAYBROKER_TEST_POSTGRES_DSN")
			if dsn == "" {
				t.Skip("DELAYBROKER_TEST_POSTGRES_DSN is not set")
			}
			p, err := NewPostgresProvider(context.Background(), dsn)
			require.NoError(t, err)
			require.NoError(t, p.Truncate(context.Background()))
			return p
		},
	}
}

func TestProviders(t *testing.T) {
	for name, factory := range providerFactories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("empty store loads nothing", func(t *testing.T) {
				p := factory(t)
				defer p.Close()

				messages, err := p.LoadAll(context.Background())
				require.NoError(t, err)
				assert.Empty(t, messages)
			})

			t.Run("save upserts by id", func(t *testing.T) {
				p := factory(t)
				defer p.Close()
				ctx := context.Background()

				m := message.New("first", "A", "B")
				require.NoError(t, p.Save(ctx, m))

				m.Content = "second"
				require.NoError(t, p.Save(ctx, m))

				messages, err := p.LoadAll(ctx)
				require.NoError(t, err)
				require.Len(t, messages, 1)
				assert.Equal(t, m.ID, messages[0].ID)
				assert.Equal(t, "second", messages[0].Content)
			})

			t.Run("delivered state round trips", func(t *testing.T) {
				p := factory(t)
				defer p.Close()
				ctx := context.Background()

				m := message.New("hi", "A", "B")
				require.NoError(t, p.Save(ctx, m))

				d, err := m.Delivered(time.Now())
				require.NoError(t, err)
				require.NoError(t, p.Save(ctx, d))

				other := message.New("pending", "B", "A")
				require.NoError(t, p.Save(ctx, other))

				messages, err := p.LoadAll(ctx)
				require.NoError(t, err)
				require.Len(t, messages, 2)

				byID := map[string]message.Message{}
				for _, msg := range messages {
					byID[msg.ID] = msg
				}
				require.NotNil(t, byID[m.ID].DeliveredAt)
				assert.False(t, byID[m.ID].DeliveredAt.Before(byID[m.ID].SentAt))
				assert.Equal(t, "A", byID[m.ID].Sender)
				assert.Equal(t, "B", byID[m.ID].Recipient)
				assert.Nil(t, byID[other.ID].DeliveredAt)
			})

			t.Run("concurrent saves are not lost", func(t *testing.T) {
				p := factory(t)
				defer p.Close()
				ctx := context.Background()

				const n = 50
				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, p.Save(ctx, message.New("x", "A", "B")))
					}()
				}
				wg.Wait()

				messages, err := p.LoadAll(ctx)
				require.NoError(t, err)
				assert.Len(t, messages, n)
			})

			t.Run("empty id is rejected", func(t *testing.T) {
				p := factory(t)
				defer p.Close()

				err := p.Save(context.Background(), message.Message{Content: "x"})
				assert.ErrorIs(t, err, message.ErrEmptyID)

				var se *Error
				assert.ErrorAs(t, err, &se)
			})
		})
	}
}

func TestFileProviderInitializesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "messages.json")

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileProviderKeepsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	m := message.New("hi", "A", "B")
	require.NoError(t, p.Save(context.Background(), m))
	require.NoError(t, p.Close())

	p, err = NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	messages, err := p.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, m.ID, messages[0].ID)
}

func TestFileProviderMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.LoadAll(context.Background())
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, BackendFile, se.Backend)
	assert.Equal(t, "load", se.Op)

	err = p.Save(context.Background(), message.New("x", "A", "B"))
	assert.ErrorAs(t, err, &se)
}

func TestFileProviderWritesDocumentedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	m := message.Message{ID: "1", Content: "hi", Sender: "A", Recipient: "B", SentAt: time.Unix(10, 0)}
	require.NoError(t, p.Save(context.Background(), m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": "1",
		"content": "hi",
		"sender": "A",
		"recipient": "B",
		"timestamp_sent": 10,
		"timestamp_delivered": null
	}]`, string(data))
}

func TestClosedProviderRejectsSave(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.Close())

	err := p.Save(context.Background(), message.New("x", "A", "B"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerProviderConcurrentClose(t *testing.T) {
	p, err := NewBadgerProvider(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, func() { _ = p.Close() })
		}()
	}
	wg.Wait()

	assert.NoError(t, p.Close())
}
