package listing

import (
	"sort"

	"cumulus/internal/domain/models"
)

// InsertionIndex returns the leftmost index at which cand can be inserted
// into seq while preserving the order defined by Compare. seq must already
// be sorted under spec. An empty sequence yields 0.
func InsertionIndex(seq []models.Node, cand *models.Node, spec SortSpec) int {
	return sort.Search(len(seq), func(i int) bool {
		return Compare(&seq[i], cand, spec) >= 0
	})
}

// Determinable reports whether cand's sort position can be fixed given
// that seq may be only a prefix of the full sibling set. With a complete
// sequence the position is always determinable; with a partial one it is
// determinable only if cand sorts strictly before some already-known
// member. A candidate that would land at the very end of a partial
// sequence could belong anywhere among the unseen siblings.
func Determinable(seq []models.Node, cand *models.Node, spec SortSpec, complete bool) bool {
	if complete {
		return true
	}
	return InsertionIndex(seq, cand, spec) < len(seq)
}
