package domain

import "context"

// NodeRepository is the durable form of the node store.
type NodeRepository interface {
	LoadAll(ctx context.Context) (map[string]NodeRecord, error)
	Upsert(ctx context.Context, nodeID string, rec NodeRecord) error
}
