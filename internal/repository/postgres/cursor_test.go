package postgres

import (
	"strings"
	"testing"

	"cumulus/internal/listing"
)

func TestCursorRoundTrip(t *testing.T) {
	spec := listing.SortSpec{Field: listing.SortBySize, Dir: listing.SortDesc}
	in := pageCursor{Offset: 50, Field: spec.Field, Dir: spec.Dir}

	out, err := decodeCursor(encodeCursor(in), spec)
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeCursor(t *testing.T) {
	nameAsc := listing.SortSpec{Field: listing.SortByName, Dir: listing.SortAsc}

	tests := []struct {
		name    string
		cursor  string
		spec    listing.SortSpec
		wantErr string
	}{
		{
			name:   "empty cursor starts at offset zero",
			cursor: "",
			spec:   nameAsc,
		},
		{
			name:    "garbage is rejected",
			cursor:  "not-base64!!",
			spec:    nameAsc,
			wantErr: "malformed",
		},
		{
			name: "sort spec mismatch is rejected",
			cursor: encodeCursor(pageCursor{
				Offset: 25, Field: listing.SortBySize, Dir: listing.SortDesc,
			}),
			spec:    nameAsc,
			wantErr: "does not match",
		},
		{
			name: "negative offset is rejected",
			cursor: encodeCursor(pageCursor{
				Offset: -1, Field: listing.SortByName, Dir: listing.SortAsc,
			}),
			spec:    nameAsc,
			wantErr: "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCursor(tt.cursor, tt.spec)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("decodeCursor() err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeCursor() unexpected error: %v", err)
			}
			if got.Offset != 0 {
				t.Errorf("Offset = %d, want 0", got.Offset)
			}
		})
	}
}
