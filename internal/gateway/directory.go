package gateway

import (
	"strings"

	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/domain"
)

// Directory maps canonical node ids to the APRS call-sign they report as.
type Directory map[string]string

// NewDirectory normalizes configured node ids ("!A1B2C3D4", "a1b2c3d4") and
// upper-cases call-signs.
func NewDirectory(nodes map[string]string) (Directory, error) {
	dir := make(Directory, len(nodes))
	for raw, callsign := range nodes {
		id := domain.NormalizeNodeID(raw)
		if id == "" {
			return nil, &config.SettingError{Key: "nodes." + raw, Reason: "is not a valid node id"}
		}
		callsign = strings.ToUpper(strings.TrimSpace(callsign))
		if callsign == "" {
			return nil, config.Missing("nodes." + raw + ".callsign")
		}
		if _, dup := dir[id]; dup {
			return nil, &config.SettingError{Key: "nodes." + raw, Reason: "duplicates node !" + id}
		}
		dir[id] = callsign
	}

	return dir, nil
}

// Callsign returns the call-sign for nodeID, if the node is configured.
func (d Directory) Callsign(nodeID string) (string, bool) {
	callsign, ok := d[nodeID]

	return callsign, ok
}
