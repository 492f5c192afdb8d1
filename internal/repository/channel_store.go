package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

const channelColumns = "channel_id, title, description, thumbnail, active, checked_at, created_at"

func scanChannel(row pgx.Row) (*model.Channel, error) {
	var ch model.Channel
	err := row.Scan(&ch.ChannelID, &ch.Title, &ch.Description, &ch.Thumbnail,
		&ch.Active, &ch.CheckedAt, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpsertChannel inserts or updates a channel and returns both the previous
// record (nil on first insert) and the stored result. Empty scraped fields
// keep the stored values.
func (s *Store) UpsertChannel(ctx context.Context, ch model.Channel) (*model.Channel, *model.Channel, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanChannel(tx.QueryRow(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE channel_id = $1 FOR UPDATE", ch.ChannelID))
	if errors.Is(err, pgx.ErrNoRows) {
		prev = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("select channel: %w", err)
	}

	curr, err := scanChannel(tx.QueryRow(ctx, `
		INSERT INTO channels (channel_id, title, description, thumbnail, active, checked_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (channel_id) DO UPDATE SET
			title       = COALESCE(NULLIF(EXCLUDED.title, ''), channels.title),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), channels.description),
			thumbnail   = COALESCE(NULLIF(EXCLUDED.thumbnail, ''), channels.thumbnail),
			active      = EXCLUDED.active,
			checked_at  = COALESCE($6, channels.checked_at)
		RETURNING `+channelColumns,
		ch.ChannelID, ch.Title, ch.Description, ch.Thumbnail, ch.Active, nullableTime(ch.CheckedAt)))
	if err != nil {
		return nil, nil, fmt.Errorf("upsert channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return prev, curr, nil
}

// GetChannel returns (nil, nil) when the channel is unknown.
func (s *Store) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	ch, err := scanChannel(s.pool.QueryRow(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE channel_id = $1", channelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func (s *Store) ListActiveChannels(ctx context.Context) ([]model.Channel, error) {
	return s.listChannels(ctx, true)
}

func (s *Store) ListChannels(ctx context.Context) ([]model.Channel, error) {
	return s.listChannels(ctx, false)
}

func (s *Store) listChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error) {
	builder := psql.Select("channel_id", "title", "description", "thumbnail", "active", "checked_at", "created_at").
		From("channels").
		OrderBy("created_at ASC")
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// DeleteChannel removes the channel; items cascade via the schema and their
// events are removed explicitly.
func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM events WHERE channel_id = $1", channelID); err != nil {
		return fmt.Errorf("delete channel events: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM channels WHERE channel_id = $1", channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// SetChannelActive flips monitoring on or off without touching scraped data.
func (s *Store) SetChannelActive(ctx context.Context, channelID string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE channels SET active = $2 WHERE channel_id = $1", channelID, active)
	if err != nil {
		return fmt.Errorf("set channel active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
