package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortField defines what to sort by.
type SortField int

const (
	SortByAllocated SortField = iota
	SortByApparent
	SortByName
	SortByItems
	SortByMtime
)

func (f SortField) String() string {
	switch f {
	case SortByAllocated:
		return "disk usage"
	case SortByApparent:
		return "apparent size"
	case SortByName:
		return "name"
	case SortByItems:
		return "items"
	case SortByMtime:
		return "mtime"
	default:
		return "unknown"
	}
}

// SortOrder defines ascending or descending.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortConfig holds sort preferences.
type SortConfig struct {
	Field SortField
	Order SortOrder
	// DirsFirst keeps directories before files regardless of sort.
	DirsFirst bool
}

// DefaultSort returns disk usage descending.
func DefaultSort() SortConfig {
	return SortConfig{Field: SortByAllocated, Order: SortDesc}
}

// SortNodes sorts nodes in place. Equal keys fall back to the name in
// ascending order whatever the direction, so the order is deterministic.
// The caller must hold the tree's read lock.
func SortNodes(nodes []*Node, cfg SortConfig) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]

		if cfg.DirsFirst && a.IsDir() != b.IsDir() {
			return a.IsDir()
		}

		c := compareNodes(a, b, cfg.Field)
		if cfg.Order == SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return nameLess(a.Name, b.Name)
	})
}

func compareNodes(a, b *Node, field SortField) int {
	switch field {
	case SortByAllocated:
		return cmpInt64(a.Allocated, b.Allocated)
	case SortByApparent:
		return cmpInt64(a.Apparent, b.Apparent)
	case SortByItems:
		return cmpInt64(a.Items, b.Items)
	case SortByMtime:
		return a.Mtime.Compare(b.Mtime)
	case SortByName:
		if a.Name == b.Name {
			return 0
		}
		if nameLess(a.Name, b.Name) {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// nameLess orders names naturally and case-insensitively, falling back to
// a byte comparison so distinct names never compare equal.
func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if natural.Less(la, lb) {
		return true
	}
	if natural.Less(lb, la) {
		return false
	}
	return a < b
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
