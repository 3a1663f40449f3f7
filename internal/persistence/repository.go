package persistence

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/skobkin/mesh2aprs/internal/domain"
)

// NodeRepository is a domain.NodeRepository backed by a resource that must be
// released on shutdown.
type NodeRepository interface {
	domain.NodeRepository
	Close() error
}

// OpenNodeRepository opens the legacy JSON document for a .json path and a
// SQLite database for anything else.
func OpenNodeRepository(ctx context.Context, path string) (NodeRepository, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONNodeRepo(path), nil
	}

	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}

	return NewNodeRepo(db), nil
}
