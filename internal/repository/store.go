// Package repository implements the durable store over Postgres.
package repository

import (
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by targeted mutations whose row does not exist.
var ErrNotFound = errors.New("repository: not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store bundles the channel, item and event queries over one pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks and metrics.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// nullableTime maps the zero time to SQL NULL so COALESCE keeps stored values.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
