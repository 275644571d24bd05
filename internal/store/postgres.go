package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// PgxPool is the subset of *pgxpool.Pool the postgres store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresConversations stores one row per message.
type PostgresConversations struct {
	pool PgxPool
	opts Options
}

func NewPostgresConversations(pool PgxPool, opts Options) *PostgresConversations {
	return &PostgresConversations{pool: pool, opts: opts}
}

// Migrate creates the conversation_messages table if it doesn't exist.
func (s *PostgresConversations) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id              BIGSERIAL    PRIMARY KEY,
			conversation_id TEXT         NOT NULL,
			message         JSONB        NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS conversation_messages_conv_idx
			ON conversation_messages (conversation_id, id);
	`)
	return err
}

func (s *PostgresConversations) Get(ctx context.Context, id string) ([]models.Message, error) {
	cutoff := time.Time{}
	if s.opts.TTL > 0 {
		cutoff = time.Now().Add(-s.opts.TTL)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT message FROM conversation_messages
		WHERE conversation_id = $1
		  AND (SELECT max(created_at) FROM conversation_messages WHERE conversation_id = $1) > $2
		ORDER BY id`, id, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trimHistory(msgs, s.opts.MaxMessages), nil
}

func (s *PostgresConversations) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.opts.TTL > 0 {
		// drop an expired history so the conversation starts over
		_, err := tx.Exec(ctx, `
			DELETE FROM conversation_messages
			WHERE conversation_id = $1
			  AND (SELECT max(created_at) FROM conversation_messages WHERE conversation_id = $1) <= $2`,
			id, now.Add(-s.opts.TTL))
		if err != nil {
			return fmt.Errorf("expire messages: %w", err)
		}
	}

	for _, m := range stamp(msgs, now) {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_messages (conversation_id, message, created_at) VALUES ($1, $2, $3)`,
			id, raw, now); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresConversations) Evict(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversation_messages WHERE conversation_id = $1`, id)
	return err
}

// Sweep deletes every conversation idle for longer than the TTL.
func (s *PostgresConversations) Sweep(ctx context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM conversation_messages WHERE conversation_id IN (
			SELECT conversation_id FROM conversation_messages
			GROUP BY conversation_id
			HAVING max(created_at) < $1
		)`, time.Now().Add(-s.opts.TTL))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
