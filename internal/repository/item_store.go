package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

const itemColumns = `video_id, channel_id, title, thumbnail, published, type,
	duration, scheduled_start, is_live_now, was_live, is_upcoming, bookmarked,
	first_seen, last_updated`

func scanItem(row pgx.Row) (*model.Item, error) {
	var item model.Item
	var typ string
	err := row.Scan(&item.VideoID, &item.ChannelID, &item.Title, &item.Thumbnail,
		&item.Published, &typ, &item.Duration, &item.ScheduledStart,
		&item.IsLiveNow, &item.WasLive, &item.IsUpcoming, &item.Bookmarked,
		&item.FirstSeen, &item.LastUpdated)
	if err != nil {
		return nil, err
	}
	item.Type = model.VideoType(typ)
	return &item, nil
}

// UpsertItem inserts or updates an item and returns the previous record (nil
// on first insert) together with the stored result. The bookmark flag and
// first-seen time are never overwritten by scraped data; empty title or
// thumbnail and a zero published time keep the stored values.
func (s *Store) UpsertItem(ctx context.Context, item model.Item) (*model.Item, *model.Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanItem(tx.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM items WHERE video_id = $1 FOR UPDATE", item.VideoID))
	if errors.Is(err, pgx.ErrNoRows) {
		prev = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("select item: %w", err)
	}

	curr, err := scanItem(tx.QueryRow(ctx, `
		INSERT INTO items (video_id, channel_id, title, thumbnail, published, type,
			duration, scheduled_start, is_live_now, was_live, is_upcoming)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), $6, $7, $8, $9, $10, $11)
		ON CONFLICT (video_id) DO UPDATE SET
			channel_id      = EXCLUDED.channel_id,
			title           = COALESCE(NULLIF(EXCLUDED.title, ''), items.title),
			thumbnail       = COALESCE(NULLIF(EXCLUDED.thumbnail, ''), items.thumbnail),
			published       = COALESCE($5, items.published),
			type            = EXCLUDED.type,
			duration        = COALESCE(EXCLUDED.duration, items.duration),
			scheduled_start = COALESCE(EXCLUDED.scheduled_start, items.scheduled_start),
			is_live_now     = EXCLUDED.is_live_now,
			was_live        = EXCLUDED.was_live,
			is_upcoming     = EXCLUDED.is_upcoming,
			last_updated    = now()
		RETURNING `+itemColumns,
		item.VideoID, item.ChannelID, item.Title, item.Thumbnail,
		nullableTime(item.Published), string(item.Type), item.Duration,
		item.ScheduledStart, item.IsLiveNow, item.WasLive, item.IsUpcoming))
	if err != nil {
		return nil, nil, fmt.Errorf("upsert item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return prev, curr, nil
}

// GetItem returns (nil, nil) when the item is unknown.
func (s *Store) GetItem(ctx context.Context, videoID string) (*model.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM items WHERE video_id = $1", videoID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *Store) ListItemsByChannel(ctx context.Context, channelID string) ([]model.Item, error) {
	return s.listItems(ctx, sq.Eq{"channel_id": channelID})
}

// ListLiveItems returns currently-live items; an empty channelID means all
// channels.
func (s *Store) ListLiveItems(ctx context.Context, channelID string) ([]model.Item, error) {
	cond := sq.And{sq.Eq{"is_live_now": true}}
	if channelID != "" {
		cond = append(cond, sq.Eq{"channel_id": channelID})
	}
	return s.listItems(ctx, cond)
}

// ListScheduledItems returns upcoming scheduled items; an empty channelID
// means all channels.
func (s *Store) ListScheduledItems(ctx context.Context, channelID string) ([]model.Item, error) {
	cond := sq.And{sq.Eq{"type": string(model.TypeScheduled)}}
	if channelID != "" {
		cond = append(cond, sq.Eq{"channel_id": channelID})
	}
	return s.listItems(ctx, cond)
}

func (s *Store) ListBookmarkedItems(ctx context.Context) ([]model.Item, error) {
	return s.listItems(ctx, sq.Eq{"bookmarked": true})
}

func (s *Store) listItems(ctx context.Context, cond sq.Sqlizer) ([]model.Item, error) {
	query, args, err := psql.Select("video_id", "channel_id", "title", "thumbnail",
		"published", "type", "duration", "scheduled_start", "is_live_now",
		"was_live", "is_upcoming", "bookmarked", "first_seen", "last_updated").
		From("items").
		Where(cond).
		OrderBy("published DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteItem removes the item and its events.
func (s *Store) DeleteItem(ctx context.Context, videoID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM events WHERE video_id = $1", videoID); err != nil {
		return fmt.Errorf("delete item events: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM items WHERE video_id = $1", videoID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// SetBookmark flips the bookmark flag, which exempts the item from retention
// pruning.
func (s *Store) SetBookmark(ctx context.Context, videoID string, bookmarked bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE items SET bookmarked = $2 WHERE video_id = $1", videoID, bookmarked)
	if err != nil {
		return fmt.Errorf("set bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneItemsExceeding deletes the oldest unbookmarked items of each channel
// beyond the per-channel cap. Bookmarked items neither count toward the cap
// nor get deleted.
func (s *Store) PruneItemsExceeding(ctx context.Context, perChannel int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM items WHERE video_id IN (
			SELECT video_id FROM (
				SELECT video_id,
				       ROW_NUMBER() OVER (PARTITION BY channel_id ORDER BY published DESC, video_id) AS rank
				FROM items
				WHERE NOT bookmarked
			) ranked
			WHERE rank > $1
		)`, perChannel)
	if err != nil {
		return 0, fmt.Errorf("prune items: %w", err)
	}
	return tag.RowsAffected(), nil
}
