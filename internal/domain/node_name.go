package domain

import "strings"

// NodeDisplayName picks the most descriptive label known for a node.
func NodeDisplayName(nodeID string, rec NodeRecord) string {
	if value := strings.TrimSpace(rec.LongName); value != "" {
		return value
	}
	if value := strings.TrimSpace(rec.ShortName); value != "" {
		return value
	}

	return "!" + strings.TrimSpace(nodeID)
}
