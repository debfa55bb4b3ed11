package sink

import (
	"sort"
	"strings"
)

// ListKey identifies the Redis list an export appends to.
type ListKey struct {
	// Index is the scrolled index or pattern
	Index string

	// Fields are the projected fields (sorted for determinism)
	Fields []string

	// RunID separates repeated exports of the same query (optional)
	RunID string
}

// String generates a deterministic key string.
// Format: scroll-export:index:field1,field2[:run]
//
// Example:
//
//	scroll-export:logs:host.name,message:0b6c...
func (k ListKey) String() string {
	parts := []string{"scroll-export"}

	index := strings.TrimSpace(k.Index)
	if index == "" {
		index = "_all"
	}
	parts = append(parts, index)

	if len(k.Fields) > 0 {
		fields := append([]string(nil), k.Fields...)
		sort.Strings(fields)
		parts = append(parts, strings.Join(fields, ","))
	}

	if k.RunID != "" {
		parts = append(parts, k.RunID)
	}

	return strings.Join(parts, ":")
}
