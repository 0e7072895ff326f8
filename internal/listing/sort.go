// Package listing maintains the node cache behind paginated, sorted folder
// and search listings. It keeps every listing consistent while nodes are
// created, moved in, copied in, renamed, trashed or paginated-in, without
// refetching the whole listing.
//
// The package is pure: it never touches the network or the database, and a
// Collection is not goroutine-safe. The owning service serializes access
// (see service.ListingService).
package listing

import (
	"strings"

	"cumulus/internal/domain/models"
)

// SortField selects the primary sort criterion for a listing.
type SortField string

const (
	SortByName     SortField = "name"
	SortBySize     SortField = "size"
	SortByModified SortField = "modified"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec is a complete sort specification. For name and modified sorts,
// container nodes are partitioned ahead of files (the partition flips with
// the direction); size sorts order purely by size regardless of kind.
type SortSpec struct {
	Field SortField     `json:"field"`
	Dir   SortDirection `json:"dir"`
}

// DefaultSort is name ascending, folders first.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortByName, Dir: SortAsc}
}

// Valid reports whether the spec holds a known field and direction.
func (s SortSpec) Valid() bool {
	switch s.Field {
	case SortByName, SortBySize, SortByModified:
	default:
		return false
	}
	switch s.Dir {
	case SortAsc, SortDesc:
	default:
		return false
	}
	return true
}

// kindRank places container kinds ahead of files for type-partitioned
// sorts. Root and folder nodes share a partition; unknown kinds sort with
// files.
func kindRank(k models.NodeKind) int {
	switch k {
	case models.KindRoot, models.KindFolder:
		return 0
	case models.KindFile:
		return 1
	default:
		return 1
	}
}

// Compare returns -1, 0 or 1 ordering a before, equal to, or after b under
// spec. It is a deterministic total order: two nodes compare equal only if
// their ids are equal. Missing fields degrade to defaults (no size = 0,
// zero timestamp = epoch) rather than erroring.
func Compare(a, b *models.Node, spec SortSpec) int {
	dir := 1
	if spec.Dir == SortDesc {
		dir = -1
	}

	if spec.Field != SortBySize {
		if ra, rb := kindRank(a.Kind), kindRank(b.Kind); ra != rb {
			if ra < rb {
				return -dir
			}
			return dir
		}
	}

	var c int
	switch spec.Field {
	case SortBySize:
		switch as, bs := a.SizeOrZero(), b.SizeOrZero(); {
		case as < bs:
			c = -1
		case as > bs:
			c = 1
		}
	case SortByModified:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	default: // SortByName
		c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
	if c != 0 {
		return c * dir
	}

	// Tie-break by id, always ascending, so insertion indices are
	// reproducible regardless of direction.
	return strings.Compare(a.ID, b.ID)
}
