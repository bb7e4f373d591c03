package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS planned_routes (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    creator_id      TEXT NOT NULL DEFAULT '',
    flight_task_id  TEXT NOT NULL DEFAULT '',
    start_node_id   TEXT NOT NULL,
    goal_node_id    TEXT NOT NULL,
    nodes           JSONB NOT NULL DEFAULT '[]',
    segments        JSONB NOT NULL DEFAULT '[]',
    total_distance  DOUBLE PRECISION NOT NULL,
    heuristic       TEXT NOT NULL,
    network_version BIGINT NOT NULL,
    polyline        TEXT NOT NULL DEFAULT '',
    created_at      BIGINT NOT NULL,
    updated_at      BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_planned_routes_creator ON planned_routes(creator_id);
CREATE INDEX IF NOT EXISTS idx_planned_routes_task    ON planned_routes(flight_task_id);
`

// CreateSchema creates the planned_routes table if it doesn't exist.
func (s *RouteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

func (s *RouteStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS planned_routes;`)
	return err
}
