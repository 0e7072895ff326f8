package listing

import (
	"errors"
	"testing"

	"cumulus/internal/domain/models"
)

func ids(nodes []models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func assertIDs(t *testing.T, got []models.Node, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("sequence = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", g, want)
		}
	}
}

// mergedCollection returns a collection that has merged one page and still
// has more pages remaining.
func partialCollection(t *testing.T, spec SortSpec, page ...models.Node) *Collection {
	t.Helper()
	c := NewCollection(spec)
	if _, err := c.MergePage(page, "tok-next", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	return c
}

func TestInsertDeterminableGoesOrdered(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "b", 1),
		file("C", "d", 1),
	)

	idx := c.Insert(file("B", "c", 1))
	if idx != 1 {
		t.Errorf("Insert returned index %d, want 1", idx)
	}
	assertIDs(t, c.Nodes(), "A", "B", "C")
	if c.UnorderedLen() != 0 {
		t.Errorf("unordered len = %d, want 0", c.UnorderedLen())
	}
}

func TestInsertUndeterminableGoesUnordered(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "b", 1),
		file("C", "d", 1),
	)

	idx := c.Insert(file("Z", "z", 1))
	if idx != 2 {
		t.Errorf("Insert returned index %d, want 2", idx)
	}
	if c.OrderedLen() != 2 {
		t.Errorf("ordered len = %d, want 2 (unchanged)", c.OrderedLen())
	}
	if c.UnorderedLen() != 1 {
		t.Errorf("unordered len = %d, want 1", c.UnorderedLen())
	}
	assertIDs(t, c.Nodes(), "A", "C", "Z")
}

func TestInsertIntoCompleteCollection(t *testing.T) {
	c := NewCollection(SortSpec{SortByName, SortAsc})
	if _, err := c.MergePage([]models.Node{file("A", "a", 1)}, "", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	if !c.Complete() {
		t.Fatal("collection should be complete")
	}

	// Appending at the end is determinable once nothing remains unseen.
	c.Insert(file("Z", "z", 1))
	assertIDs(t, c.Nodes(), "A", "Z")
	if c.UnorderedLen() != 0 {
		t.Errorf("unordered len = %d, want 0", c.UnorderedLen())
	}
}

func TestInsertIdempotent(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "b", 1),
		file("C", "d", 1),
	)

	n := file("B", "c", 1)
	first := c.Insert(n)
	second := c.Insert(n)
	if first != second {
		t.Errorf("duplicate insert returned %d, want %d", second, first)
	}
	assertIDs(t, c.Nodes(), "A", "B", "C")
}

func TestInsertDuplicateIDWithChangedDataReplaces(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "b", 1),
		file("C", "d", 1),
	)

	c.Insert(file("B", "c", 1))
	// Confirmed create arrives with a different size for the same id.
	c.Insert(file("B", "c", 42))

	assertIDs(t, c.Nodes(), "A", "B", "C")
	if got := c.Nodes()[1].SizeOrZero(); got != 42 {
		t.Errorf("updated size = %d, want 42", got)
	}
}

func TestInsertRenameMovesToUnorderedWhenNoLongerDeterminable(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "b", 1),
		file("C", "d", 1),
	)

	c.Insert(file("B", "c", 1))
	// Rename pushes the node past the loaded prefix; it must drop out of
	// ordered rather than sit at a wrong index.
	c.Insert(file("B", "zz", 1))

	assertIDs(t, c.Nodes(), "A", "C", "B")
	if c.UnorderedLen() != 1 {
		t.Errorf("unordered len = %d, want 1", c.UnorderedLen())
	}
}

func TestRemoveFromEitherSet(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "a", 1),
		file("B", "b", 1),
	)
	c.Insert(file("C", "z", 1)) // unordered

	if !c.Remove("B") {
		t.Fatal("Remove(B) = false, want true")
	}
	assertIDs(t, c.Nodes(), "A", "C")

	if !c.Remove("C") {
		t.Fatal("Remove(C) = false, want true")
	}
	assertIDs(t, c.Nodes(), "A")

	if c.Remove("missing") {
		t.Error("Remove(missing) = true, want false (no-op)")
	}
}

func TestMergePagePromotesUnordered(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc}, file("A", "a", 1))
	c.Insert(file("Z", "z", 1))
	if c.UnorderedLen() != 1 {
		t.Fatalf("unordered len = %d, want 1", c.UnorderedLen())
	}

	promoted, err := c.MergePage([]models.Node{file("M", "m", 1)}, "", c.Generation())
	if err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	if promoted != 1 {
		t.Errorf("promoted = %d, want 1", promoted)
	}
	if !c.Complete() {
		t.Error("collection should be complete")
	}
	assertIDs(t, c.Nodes(), "A", "M", "Z")
	if c.UnorderedLen() != 0 {
		t.Errorf("unordered len = %d, want 0", c.UnorderedLen())
	}
}

func TestMergePagePartialPromotion(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc}, file("A", "a", 1))
	c.Insert(file("M", "m", 1)) // unordered, would append
	c.Insert(file("Z", "z", 1)) // unordered, would append

	// Next page loads "q" but more pages remain: "m" becomes determinable
	// (sorts before "q"), "z" still does not.
	promoted, err := c.MergePage([]models.Node{file("Q", "q", 1)}, "tok-2", c.Generation())
	if err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	if promoted != 1 {
		t.Errorf("promoted = %d, want 1", promoted)
	}
	assertIDs(t, c.Nodes(), "A", "M", "Q", "Z")
	if c.UnorderedLen() != 1 {
		t.Errorf("unordered len = %d, want 1", c.UnorderedLen())
	}
}

func TestMergePageDeduplicatesLocalInserts(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc}, file("A", "a", 1))
	c.Insert(file("Z", "z", 1)) // unordered local insert

	// The server page contains the same node (created before the fetch).
	promoted, err := c.MergePage([]models.Node{file("Z", "z", 2)}, "", c.Generation())
	if err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	_ = promoted

	assertIDs(t, c.Nodes(), "A", "Z")
	if got := c.Nodes()[1].SizeOrZero(); got != 2 {
		t.Errorf("page data should win, size = %d, want 2", got)
	}
}

func TestMergePageStaleGenerationRejected(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc}, file("A", "a", 1))
	gen := c.Generation()

	// Sort changes under partial data: collection resets, generation bumps.
	if refetch := c.ChangeSort(SortSpec{SortBySize, SortDesc}); !refetch {
		t.Fatal("ChangeSort under partial data should request a refetch")
	}

	if _, err := c.MergePage([]models.Node{file("B", "b", 1)}, "", gen); !errors.Is(err, ErrStalePage) {
		t.Fatalf("MergePage with stale generation: err = %v, want ErrStalePage", err)
	}
	if c.Len() != 0 {
		t.Errorf("stale page must not be applied, len = %d, want 0", c.Len())
	}
}

func TestChangeSortCompleteResortsInPlace(t *testing.T) {
	c := NewCollection(SortSpec{SortByName, SortAsc})
	small, big := int64(1), int64(100)
	page := []models.Node{
		{ID: "F", Kind: models.KindFolder, Name: "folder"},
		{ID: "B", Kind: models.KindFile, Name: "big", Size: &big},
		{ID: "S", Kind: models.KindFile, Name: "small", Size: &small},
	}
	if _, err := c.MergePage(page, "", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	gen := c.Generation()

	if refetch := c.ChangeSort(SortSpec{SortBySize, SortDesc}); refetch {
		t.Fatal("ChangeSort on a complete collection should not refetch")
	}
	// Size sort ignores the type partition: big file, small file, folder.
	assertIDs(t, c.Nodes(), "B", "S", "F")
	if c.Generation() != gen {
		t.Error("in-place resort must not bump the generation")
	}
}

func TestChangeSortSameSpecIsNoop(t *testing.T) {
	spec := SortSpec{SortByName, SortAsc}
	c := partialCollection(t, spec, file("A", "a", 1))
	if refetch := c.ChangeSort(spec); refetch {
		t.Error("ChangeSort with the current spec should be a no-op")
	}
	assertIDs(t, c.Nodes(), "A")
}

func TestPageFull(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "a", 1),
		file("B", "b", 1),
	)
	c.Insert(file("Z", "z", 1))

	if !c.PageFull(3) {
		t.Error("PageFull(3) = false, want true (3 cached, more pages remain)")
	}
	if c.PageFull(4) {
		t.Error("PageFull(4) = true, want false")
	}

	// A complete collection never suppresses anything: there is nothing
	// left to fetch.
	done := NewCollection(SortSpec{SortByName, SortAsc})
	if _, err := done.MergePage([]models.Node{file("A", "a", 1)}, "", done.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	if done.PageFull(1) {
		t.Error("PageFull on complete collection = true, want false")
	}
}

func TestIndexOf(t *testing.T) {
	c := partialCollection(t, SortSpec{SortByName, SortAsc},
		file("A", "a", 1),
		file("B", "b", 1),
	)
	c.Insert(file("Z", "z", 1))

	tests := []struct {
		id   string
		want int
	}{
		{"A", 0},
		{"B", 1},
		{"Z", 2},
		{"missing", -1},
	}
	for _, tt := range tests {
		if got := c.IndexOf(tt.id); got != tt.want {
			t.Errorf("IndexOf(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

// TestOrderedInvariant drives a mixed operation sequence and checks that
// the ordered prefix always satisfies the comparator and that no id ever
// occupies both sets.
func TestOrderedInvariant(t *testing.T) {
	spec := SortSpec{SortByName, SortAsc}
	c := NewCollection(spec)

	check := func(step string) {
		t.Helper()
		seen := map[string]bool{}
		for i := 0; i < c.OrderedLen(); i++ {
			n := c.Nodes()[i]
			if seen[n.ID] {
				t.Fatalf("%s: duplicate id %q", step, n.ID)
			}
			seen[n.ID] = true
			if i > 0 {
				prev := c.Nodes()[i-1]
				if Compare(&prev, &n, spec) >= 0 {
					t.Fatalf("%s: ordered prefix out of order at %d: %v", step, i, ids(c.Nodes()))
				}
			}
		}
		for _, n := range c.Nodes()[c.OrderedLen():] {
			if seen[n.ID] {
				t.Fatalf("%s: id %q in both ordered and unordered", step, n.ID)
			}
			seen[n.ID] = true
		}
	}

	if _, err := c.MergePage([]models.Node{file("d1", "delta", 1), file("h1", "hotel", 1)}, "t1", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	check("first page")

	c.Insert(folder("f1", "assets"))
	check("insert folder")
	c.Insert(file("x1", "xray", 1))
	check("insert past tail")
	c.Insert(file("e1", "echo", 1))
	check("insert between")
	c.Remove("d1")
	check("remove ordered")

	if _, err := c.MergePage([]models.Node{file("m1", "mike", 1), file("p1", "papa", 1)}, "t2", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	check("second page")

	if _, err := c.MergePage([]models.Node{file("y1", "yankee", 1)}, "", c.Generation()); err != nil {
		t.Fatalf("MergePage: %v", err)
	}
	check("final page")

	if c.UnorderedLen() != 0 {
		t.Errorf("complete collection has %d unordered members, want 0", c.UnorderedLen())
	}
}
