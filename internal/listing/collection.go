package listing

import (
	"errors"
	"slices"

	"cumulus/internal/domain/models"
)

// ErrStalePage is returned by MergePage when the page was fetched against
// an earlier generation of the collection (sort changed, listing reset or
// reopened while the fetch was in flight). The page must be discarded.
var ErrStalePage = errors.New("listing: stale page result")

// Collection is the per-listing node cache. It keeps two sequences:
//
//   - ordered: nodes whose sort position is validated against every
//     sibling fetched so far (the loaded prefix of the listing).
//   - unordered: nodes inserted locally whose position relative to
//     not-yet-fetched siblings is unknown, kept in insertion order and
//     rendered after the ordered members.
//
// A node id appears in at most one of the two sequences. Once the last
// page has been merged the collection is complete and unordered is empty.
type Collection struct {
	spec       SortSpec
	ordered    []models.Node
	unordered  []models.Node
	pageToken  string
	complete   bool
	generation uint64
}

// NewCollection creates an empty, incomplete collection. The first page
// arrives through MergePage.
func NewCollection(spec SortSpec) *Collection {
	return &Collection{spec: spec}
}

// Sort returns the current sort specification.
func (c *Collection) Sort() SortSpec { return c.spec }

// Complete reports whether every page of the listing has been merged.
func (c *Collection) Complete() bool { return c.complete }

// PageToken returns the cursor for the next page, "" when exhausted or
// before the first merge (Complete distinguishes the two).
func (c *Collection) PageToken() string { return c.pageToken }

// Generation identifies the current fetch epoch. Callers capture it before
// starting an asynchronous page fetch and pass it back to MergePage.
func (c *Collection) Generation() uint64 { return c.generation }

// Len returns the total number of cached nodes.
func (c *Collection) Len() int { return len(c.ordered) + len(c.unordered) }

// Insert places n into the collection and returns its rendered position.
// It covers local creates as well as copy-in and move-in events. If the
// position is determinable against the loaded prefix the node joins the
// ordered sequence at its sorted index; otherwise it is appended to the
// unordered tail until a later page merge settles it.
//
// Insert is idempotent on node id: re-inserting identical data is a no-op
// returning the existing position, and changed data is re-placed through
// the normal determinability path so the ordering invariant holds.
func (c *Collection) Insert(n models.Node) int {
	if i := indexByID(c.ordered, n.ID); i >= 0 {
		if sameNode(&c.ordered[i], &n) {
			return i
		}
		c.ordered = slices.Delete(c.ordered, i, i+1)
	} else if i := indexByID(c.unordered, n.ID); i >= 0 {
		if sameNode(&c.unordered[i], &n) {
			return len(c.ordered) + i
		}
		c.unordered = slices.Delete(c.unordered, i, i+1)
	}

	if Determinable(c.ordered, &n, c.spec, c.complete) {
		idx := InsertionIndex(c.ordered, &n, c.spec)
		c.ordered = slices.Insert(c.ordered, idx, n)
		return idx
	}
	c.unordered = append(c.unordered, n)
	return len(c.ordered) + len(c.unordered) - 1
}

// Remove deletes id from whichever sequence holds it, leaving the other
// members untouched. Removing an absent id is a no-op returning false.
func (c *Collection) Remove(id string) bool {
	if i := indexByID(c.ordered, id); i >= 0 {
		c.ordered = slices.Delete(c.ordered, i, i+1)
		return true
	}
	if i := indexByID(c.unordered, id); i >= 0 {
		c.unordered = slices.Delete(c.unordered, i, i+1)
		return true
	}
	return false
}

// MergePage merges a freshly fetched page into the ordered sequence and
// re-evaluates the unordered tail against it. gen must be the Generation
// observed when the fetch started; pages from an earlier generation are
// rejected with ErrStalePage so a stale result can never corrupt the
// collection.
//
// Page nodes land at their sorted index; an id already cached locally
// (optimistic insert, or drift across page boundaries) is replaced rather
// than duplicated. Unordered members whose position became determinable
// are promoted into ordered, in their original relative order; the rest
// stay unordered. Returns the number of promoted nodes.
func (c *Collection) MergePage(nodes []models.Node, nextToken string, gen uint64) (int, error) {
	if gen != c.generation {
		return 0, ErrStalePage
	}

	c.pageToken = nextToken
	c.complete = nextToken == ""

	for _, n := range nodes {
		if i := indexByID(c.ordered, n.ID); i >= 0 {
			c.ordered = slices.Delete(c.ordered, i, i+1)
		} else if i := indexByID(c.unordered, n.ID); i >= 0 {
			c.unordered = slices.Delete(c.unordered, i, i+1)
		}
		idx := InsertionIndex(c.ordered, &n, c.spec)
		c.ordered = slices.Insert(c.ordered, idx, n)
	}

	promoted := 0
	if len(c.unordered) > 0 {
		pending := c.unordered
		c.unordered = nil
		for _, n := range pending {
			if Determinable(c.ordered, &n, c.spec, c.complete) {
				idx := InsertionIndex(c.ordered, &n, c.spec)
				c.ordered = slices.Insert(c.ordered, idx, n)
				promoted++
			} else {
				c.unordered = append(c.unordered, n)
			}
		}
	}
	return promoted, nil
}

// ChangeSort applies a new sort specification. When the collection is
// complete the cached members are re-sorted in place and refetch is false.
// Partial results cannot be safely re-sorted: the collection is cleared,
// the generation is bumped so in-flight pages are dropped, and the caller
// must refetch from the first page.
func (c *Collection) ChangeSort(spec SortSpec) (refetch bool) {
	if spec == c.spec {
		return false
	}
	c.spec = spec
	if c.complete {
		all := append(c.ordered, c.unordered...)
		slices.SortFunc(all, func(a, b models.Node) int {
			return Compare(&a, &b, spec)
		})
		c.ordered = all
		c.unordered = nil
		return false
	}
	c.Reset()
	return true
}

// Reset clears the collection and bumps the generation. Used when the
// listing is refetched from scratch (sort change under partial data, or
// an explicit refresh).
func (c *Collection) Reset() {
	c.ordered = nil
	c.unordered = nil
	c.pageToken = ""
	c.complete = false
	c.generation++
}

// PageFull reports whether the visible page already holds at least target
// nodes while more pages remain. Callers use it to skip the automatic
// top-up fetch right after a local insert filled the page.
func (c *Collection) PageFull(target int) bool {
	return !c.complete && len(c.ordered)+len(c.unordered) >= target
}

// Nodes returns a copy of the rendered sequence: the ordered members
// followed by the unordered tail.
func (c *Collection) Nodes() []models.Node {
	out := make([]models.Node, 0, len(c.ordered)+len(c.unordered))
	out = append(out, c.ordered...)
	out = append(out, c.unordered...)
	return out
}

// IndexOf returns the rendered position of id, or -1 if the collection
// does not hold it. Views use it to scroll to a node after an operation.
func (c *Collection) IndexOf(id string) int {
	if i := indexByID(c.ordered, id); i >= 0 {
		return i
	}
	if i := indexByID(c.unordered, id); i >= 0 {
		return len(c.ordered) + i
	}
	return -1
}

// OrderedLen returns the size of the ordered sequence.
func (c *Collection) OrderedLen() int { return len(c.ordered) }

// UnorderedLen returns the size of the unordered tail.
func (c *Collection) UnorderedLen() int { return len(c.unordered) }

func indexByID(seq []models.Node, id string) int {
	return slices.IndexFunc(seq, func(n models.Node) bool { return n.ID == id })
}

// sameNode compares the fields that matter to a listing entry. Pointer
// fields are compared by value.
func sameNode(a, b *models.Node) bool {
	return a.ID == b.ID &&
		a.Kind == b.Kind &&
		a.Name == b.Name &&
		a.SizeOrZero() == b.SizeOrZero() &&
		a.MimeType == b.MimeType &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		ptrEqual(a.ParentID, b.ParentID)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
