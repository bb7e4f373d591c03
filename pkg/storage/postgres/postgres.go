package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RouteStore keeps planned routes in PostgreSQL via pgx.
type RouteStore struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *RouteStore {
	return &RouteStore{db: db}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *RouteStore) Close() error {
	s.db.Close()
	return nil
}
