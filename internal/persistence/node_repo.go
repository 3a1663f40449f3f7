package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/mesh2aprs/internal/domain"
)

// NodeRepo stores node records in SQLite.
type NodeRepo struct {
	db *sql.DB
}

func NewNodeRepo(db *sql.DB) *NodeRepo {
	return &NodeRepo{db: db}
}

func (r *NodeRepo) Upsert(ctx context.Context, nodeID string, rec domain.NodeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes(node_id, long_name, short_name, hw_model, seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			long_name = excluded.long_name,
			short_name = excluded.short_name,
			hw_model = excluded.hw_model,
			seen_at = excluded.seen_at,
			updated_at = excluded.updated_at
	`, nodeID, rec.LongName, rec.ShortName, rec.HwModel, timeToUnixMillis(rec.SeenAt), timeToUnixMillis(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	return nil
}

func (r *NodeRepo) LoadAll(ctx context.Context) (map[string]domain.NodeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, long_name, short_name, hw_model, seen_at, updated_at
		FROM nodes
	`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.NodeRecord)
	for rows.Next() {
		var (
			nodeID string
			rec    domain.NodeRecord
			seenMs int64
			updMs  int64
		)
		if err := rows.Scan(&nodeID, &rec.LongName, &rec.ShortName, &rec.HwModel, &seenMs, &updMs); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		rec.SeenAt = unixMillisToTime(seenMs)
		rec.UpdatedAt = unixMillisToTime(updMs)
		out[nodeID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	return out, nil
}

func (r *NodeRepo) Close() error {
	return r.db.Close()
}
