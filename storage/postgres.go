package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"delaybroker/pkg/message"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id                  text PRIMARY KEY,
	content             text NOT NULL,
	sender              text NOT NULL,
	recipient           text NOT NULL,
	timestamp_sent      double precision NOT NULL,
	timestamp_delivered double precision
);`

const upsertMessage = `
INSERT INTO messages (id, content, sender, recipient, timestamp_sent, timestamp_delivered)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	content = EXCLUDED.content,
	sender = EXCLUDED.sender,
	recipient = EXCLUDED.recipient,
	timestamp_sent = EXCLUDED.timestamp_sent,
	timestamp_delivered = EXCLUDED.timestamp_delivered`

const selectMessages = `
SELECT id, content, sender, recipient, timestamp_sent, timestamp_delivered FROM messages`

// PostgresProvider implements Provider on a PostgreSQL table.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider connects using dsn and creates the messages table if
// it does not exist.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, newError(BackendPostgres, "open", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(10 * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newError(BackendPostgres, "ping", err)
	}

	if _, err := db.ExecContext(ctx, createMessagesTable); err != nil {
		db.Close()
		return nil, newError(BackendPostgres, "create table", err)
	}

	return &PostgresProvider{db: db}, nil
}

// Save upserts msg in a single statement.
func (p *PostgresProvider) Save(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return newError(BackendPostgres, "save", err)
	}

	var delivered sql.NullFloat64
	if msg.DeliveredAt != nil {
		delivered = sql.NullFloat64{Float64: message.ToEpochSeconds(*msg.DeliveredAt), Valid: true}
	}

	_, err := p.db.ExecContext(ctx, upsertMessage,
		msg.ID,
		msg.Content,
		msg.Sender,
		msg.Recipient,
		message.ToEpochSeconds(msg.SentAt),
		delivered,
	)
	return newError(BackendPostgres, "save", err)
}

// LoadAll selects every row.
func (p *PostgresProvider) LoadAll(ctx context.Context) ([]message.Message, error) {
	rows, err := p.db.QueryContext(ctx, selectMessages)
	if err != nil {
		return nil, newError(BackendPostgres, "load", err)
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		var (
			msg       message.Message
			sent      float64
			delivered sql.NullFloat64
		)
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.Sender, &msg.Recipient, &sent, &delivered); err != nil {
			return nil, newError(BackendPostgres, "load", err)
		}
		msg.SentAt = message.FromEpochSeconds(sent)
		if delivered.Valid {
			at := message.FromEpochSeconds(delivered.Float64)
			msg.DeliveredAt = &at
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(BackendPostgres, "load", err)
	}
	return messages, nil
}

// Truncate removes every row. Used by tests against a shared database.
func (p *PostgresProvider) Truncate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE messages`)
	return newError(BackendPostgres, "truncate", err)
}

func (p *PostgresProvider) Close() error {
	return newError(BackendPostgres, "close", p.db.Close())
}
