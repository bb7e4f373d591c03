package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
)

const selectRoute = `SELECT id, name, creator_id, flight_task_id, start_node_id, goal_node_id,
	nodes, segments, total_distance, heuristic, network_version, polyline, created_at, updated_at
	FROM planned_routes`

// Save inserts a route or overwrites the row with the same id.
func (s *RouteStore) Save(ctx context.Context, r datastructure.RouteRecord) error {
	nodes, segments, err := marshalPath(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO planned_routes (id, name, creator_id, flight_task_id, start_node_id, goal_node_id,
			nodes, segments, total_distance, heuristic, network_version, polyline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, creator_id = EXCLUDED.creator_id, flight_task_id = EXCLUDED.flight_task_id,
			start_node_id = EXCLUDED.start_node_id, goal_node_id = EXCLUDED.goal_node_id,
			nodes = EXCLUDED.nodes, segments = EXCLUDED.segments, total_distance = EXCLUDED.total_distance,
			heuristic = EXCLUDED.heuristic, network_version = EXCLUDED.network_version,
			polyline = EXCLUDED.polyline, updated_at = EXCLUDED.updated_at`,
		r.ID, r.Name, r.CreatorID, r.FlightTaskID, r.StartNodeID, r.GoalNodeID,
		nodes, segments, r.TotalDistance, r.Heuristic, int64(r.NetworkVersion), r.Polyline, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("routes: insert route: %w", err)
	}
	return nil
}

func (s *RouteStore) Get(ctx context.Context, id string) (datastructure.RouteRecord, error) {
	r, err := scanRoute(s.db.QueryRow(ctx, selectRoute+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return datastructure.RouteRecord{}, fmt.Errorf("route %s: %w", id, datastructure.ErrRouteNotFound)
	}
	if err != nil {
		return datastructure.RouteRecord{}, fmt.Errorf("routes: get route: %w", err)
	}
	return r, nil
}

// Update overwrites an existing route. Returns ErrRouteNotFound if the route doesn't exist.
func (s *RouteStore) Update(ctx context.Context, r datastructure.RouteRecord) error {
	nodes, segments, err := marshalPath(r)
	if err != nil {
		return err
	}
	ct, err := s.db.Exec(ctx,
		`UPDATE planned_routes SET name = $2, creator_id = $3, flight_task_id = $4, start_node_id = $5,
			goal_node_id = $6, nodes = $7, segments = $8, total_distance = $9, heuristic = $10,
			network_version = $11, polyline = $12, updated_at = $13
		WHERE id = $1`,
		r.ID, r.Name, r.CreatorID, r.FlightTaskID, r.StartNodeID, r.GoalNodeID,
		nodes, segments, r.TotalDistance, r.Heuristic, int64(r.NetworkVersion), r.Polyline, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("routes: update route: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("route %s: %w", r.ID, datastructure.ErrRouteNotFound)
	}
	return nil
}

func (s *RouteStore) Delete(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM planned_routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("routes: delete route: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("route %s: %w", id, datastructure.ErrRouteNotFound)
	}
	return nil
}

// List returns all routes ordered by created_at. Returns an empty slice (not nil) if none found.
func (s *RouteStore) List(ctx context.Context) ([]datastructure.RouteRecord, error) {
	return s.query(ctx, selectRoute+` ORDER BY created_at, id`)
}

func (s *RouteStore) ListByCreator(ctx context.Context, creatorID string) ([]datastructure.RouteRecord, error) {
	return s.query(ctx, selectRoute+` WHERE creator_id = $1 ORDER BY created_at, id`, creatorID)
}

func (s *RouteStore) ListByFlightTask(ctx context.Context, flightTaskID string) ([]datastructure.RouteRecord, error) {
	return s.query(ctx, selectRoute+` WHERE flight_task_id = $1 ORDER BY created_at, id`, flightTaskID)
}

func (s *RouteStore) query(ctx context.Context, sql string, args ...any) ([]datastructure.RouteRecord, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("routes: list routes: %w", err)
	}
	defer rows.Close()

	routes := []datastructure.RouteRecord{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("routes: scan route: %w", err)
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("routes: rows routes: %w", err)
	}
	return routes, nil
}

func scanRoute(row pgx.Row) (datastructure.RouteRecord, error) {
	var (
		r               datastructure.RouteRecord
		nodes, segments []byte
		version         int64
	)
	err := row.Scan(&r.ID, &r.Name, &r.CreatorID, &r.FlightTaskID, &r.StartNodeID, &r.GoalNodeID,
		&nodes, &segments, &r.TotalDistance, &r.Heuristic, &version, &r.Polyline, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.NetworkVersion = uint64(version)
	if err := json.Unmarshal(nodes, &r.Nodes); err != nil {
		return r, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal(segments, &r.Segments); err != nil {
		return r, fmt.Errorf("decode segments: %w", err)
	}
	return r, nil
}

func marshalPath(r datastructure.RouteRecord) ([]byte, []byte, error) {
	nodes, err := json.Marshal(r.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("encode nodes: %w", err)
	}
	segments, err := json.Marshal(r.Segments)
	if err != nil {
		return nil, nil, fmt.Errorf("encode segments: %w", err)
	}
	return nodes, segments, nil
}
