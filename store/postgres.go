package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps panels in the slot_panels table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Open returns a PostgresStore for databaseURL, or a MemoryStore when it is empty
func Open(ctx context.Context, databaseURL string) (PanelStore, error) {
	if databaseURL == "" {
		return NewMemoryStore(), nil
	}
	s, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Panel lookups are tiny; a small pool is plenty
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams = map[string]string{
		"application_name":                    "slots-panel",
		"timezone":                            "UTC",
		"statement_timeout":                   "30s",
		"idle_in_transaction_session_timeout": "60s",
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slot_panels (
			user_id    TEXT PRIMARY KEY,
			guild_id   TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			opened_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create slot_panels table: %w", err)
	}
	return nil
}

func (s *PostgresStore) SavePanel(ctx context.Context, p Panel) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slot_panels (user_id, guild_id, channel_id, message_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			guild_id   = EXCLUDED.guild_id,
			channel_id = EXCLUDED.channel_id,
			message_id = EXCLUDED.message_id,
			updated_at = NOW()`,
		p.UserID, p.GuildID, p.ChannelID, p.MessageID)
	if err != nil {
		return fmt.Errorf("save panel %s: %w", p.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetPanel(ctx context.Context, userID string) (Panel, error) {
	var p Panel
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, guild_id, channel_id, message_id, opened_at, updated_at
		FROM slot_panels WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.GuildID, &p.ChannelID, &p.MessageID, &p.OpenedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Panel{}, ErrPanelNotFound
	}
	if err != nil {
		return Panel{}, fmt.Errorf("get panel %s: %w", userID, err)
	}
	return p, nil
}

func (s *PostgresStore) DeletePanel(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM slot_panels WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete panel %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
