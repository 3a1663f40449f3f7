package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/skobkin/mesh2aprs/internal/domain"
)

// jsonNode is one entry of the nodes.json document. Times are unix seconds.
type jsonNode struct {
	LongName  string  `json:"long_name,omitempty"`
	ShortName string  `json:"short_name,omitempty"`
	HwModel   string  `json:"hw_model,omitempty"`
	Seen      float64 `json:"seen,omitempty"`
	Updated   float64 `json:"updated,omitempty"`
}

// JSONNodeRepo keeps node records in a single JSON document that is rewritten
// on every mutation.
type JSONNodeRepo struct {
	path string

	mu     sync.Mutex
	nodes  map[string]jsonNode
	loaded bool
}

func NewJSONNodeRepo(path string) *JSONNodeRepo {
	return &JSONNodeRepo{path: filepath.Clean(path)}
}

func (r *JSONNodeRepo) LoadAll(_ context.Context) (map[string]domain.NodeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]domain.NodeRecord, len(r.nodes))
	for id, n := range r.nodes {
		out[id] = domain.NodeRecord{
			LongName:  n.LongName,
			ShortName: n.ShortName,
			HwModel:   n.HwModel,
			SeenAt:    unixSecondsToTime(n.Seen),
			UpdatedAt: unixSecondsToTime(n.Updated),
		}
	}

	return out, nil
}

func (r *JSONNodeRepo) Upsert(ctx context.Context, nodeID string, rec domain.NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return err
	}
	next := make(map[string]jsonNode, len(r.nodes)+1)
	for id, n := range r.nodes {
		next[id] = n
	}
	next[nodeID] = jsonNode{
		LongName:  rec.LongName,
		ShortName: rec.ShortName,
		HwModel:   rec.HwModel,
		Seen:      timeToUnixSeconds(rec.SeenAt),
		Updated:   timeToUnixSeconds(rec.UpdatedAt),
	}
	if err := r.writeLocked(next); err != nil {
		return err
	}
	r.nodes = next

	return nil
}

func (r *JSONNodeRepo) Close() error {
	return nil
}

func (r *JSONNodeRepo) loadLocked() error {
	if r.loaded {
		return nil
	}

	// #nosec G304 -- path comes from operator-provided configuration.
	raw, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.nodes = make(map[string]jsonNode)
	case err != nil:
		return fmt.Errorf("read node file: %w", err)
	default:
		nodes := make(map[string]jsonNode)
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return fmt.Errorf("parse node file %s: %w", r.path, err)
		}
		r.nodes = nodes
	}
	r.loaded = true

	return nil
}

func (r *JSONNodeRepo) writeLocked(nodes map[string]jsonNode) error {
	raw, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode node file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp node file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp node file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temp node file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp node file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("replace node file: %w", err)
	}

	return nil
}
