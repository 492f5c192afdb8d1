package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

const eventColumns = "id, kind, video_id, channel_id, payload, created_at"

func (s *Store) AddEvent(ctx context.Context, ev model.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (kind, video_id, channel_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))`,
		string(ev.Kind), ev.VideoID, ev.ChannelID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// ListRecentEvents returns the newest events first, capped at limit.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	return s.listEvents(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY created_at DESC, id DESC LIMIT $1", limit)
}

// ListEventsSince returns events created strictly after the given time,
// oldest first, for delta polling.
func (s *Store) ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	return s.listEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE created_at > $1 ORDER BY created_at ASC, id ASC", since)
}

func (s *Store) listEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var kind string
		if err := rows.Scan(&ev.ID, &kind, &ev.VideoID, &ev.ChannelID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) PruneEventsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM events WHERE created_at < now() - $1::interval",
		fmt.Sprintf("%d seconds", int64(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneOrphanedEvents removes events whose item no longer exists.
func (s *Store) PruneOrphanedEvents(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM events e
		WHERE NOT EXISTS (SELECT 1 FROM items i WHERE i.video_id = e.video_id)`)
	if err != nil {
		return 0, fmt.Errorf("prune orphaned events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Counts reports table sizes for the stats endpoint.
func (s *Store) Counts(ctx context.Context) (channels, items, events int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM channels),
		       (SELECT count(*) FROM items),
		       (SELECT count(*) FROM events)`).Scan(&channels, &items, &events)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("counts: %w", err)
	}
	return channels, items, events, nil
}
