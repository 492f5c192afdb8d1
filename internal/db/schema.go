package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist yet.
//
// Events carry no foreign key to items: the delete-item cascade is performed
// explicitly by the store, and the orphan prune sweeps up anything left.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			channel_id  TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			thumbnail   TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT true,
			checked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			video_id        TEXT PRIMARY KEY,
			channel_id      TEXT NOT NULL REFERENCES channels(channel_id) ON DELETE CASCADE,
			title           TEXT NOT NULL DEFAULT '',
			thumbnail       TEXT NOT NULL DEFAULT '',
			published       TIMESTAMPTZ NOT NULL,
			type            TEXT NOT NULL,
			duration        INTEGER,
			scheduled_start TIMESTAMPTZ,
			is_live_now     BOOLEAN NOT NULL DEFAULT false,
			was_live        BOOLEAN NOT NULL DEFAULT false,
			is_upcoming     BOOLEAN NOT NULL DEFAULT false,
			bookmarked      BOOLEAN NOT NULL DEFAULT false,
			first_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_channel ON items(channel_id, published DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_items_live ON items(channel_id) WHERE is_live_now`,
		`CREATE TABLE IF NOT EXISTS events (
			id         BIGSERIAL PRIMARY KEY,
			kind       TEXT NOT NULL,
			video_id   TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			payload    JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_video ON events(video_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
