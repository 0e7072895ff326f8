package listing

import (
	"testing"

	"cumulus/internal/domain/models"
)

func TestInsertionIndex(t *testing.T) {
	nameAsc := SortSpec{SortByName, SortAsc}
	seq := []models.Node{
		folder("f1", "docs"),
		file("a", "alpha", 1),
		file("c", "charlie", 1),
		file("e", "echo", 1),
	}

	tests := []struct {
		name string
		seq  []models.Node
		cand models.Node
		want int
	}{
		{"empty sequence", nil, file("x", "anything", 0), 0},
		{"before everything", seq, folder("f0", "attachments"), 0},
		{"between files", seq, file("b", "bravo", 0), 2},
		{"after everything", seq, file("z", "zulu", 0), 4},
		{"folder stays in folder partition", seq, folder("f2", "zz-archive"), 1},
		{"duplicate key lands adjacent by id", seq, file("b2", "charlie", 1), 2},
		{"duplicate key higher id lands after", seq, file("d", "charlie", 1), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsertionIndex(tt.seq, &tt.cand, nameAsc); got != tt.want {
				t.Errorf("InsertionIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeterminable(t *testing.T) {
	nameAsc := SortSpec{SortByName, SortAsc}
	// Partial prefix of a larger listing: only "b" and "d" loaded so far.
	partial := []models.Node{
		file("a", "b", 1),
		file("c", "d", 1),
	}

	tests := []struct {
		name     string
		seq      []models.Node
		cand     models.Node
		complete bool
		want     bool
	}{
		{"complete sequence is always determinable", partial, file("z", "z", 0), true, true},
		{"sorts before a known sibling", partial, file("b", "c", 0), false, true},
		{"would append to partial tail", partial, file("z", "z", 0), false, false},
		{"empty partial sequence", nil, file("x", "x", 0), false, false},
		{"empty complete sequence", nil, file("x", "x", 0), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Determinable(tt.seq, &tt.cand, nameAsc, tt.complete); got != tt.want {
				t.Errorf("Determinable() = %v, want %v", got, tt.want)
			}
		})
	}
}
