package postgres

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"cumulus/internal/listing"
)

// pageCursor is the decoded form of the opaque listing cursor. It pins the
// sort spec the listing was opened with so a page fetched under one spec
// can never be merged into a listing that has since been re-sorted.
//
// The cursor is window-based: concurrent inserts can shift the window and
// let a node appear on two adjacent pages, which is acceptable because the
// listing reconciler deduplicates ids on merge.
type pageCursor struct {
	Offset int                   `json:"o"`
	Field  listing.SortField     `json:"f"`
	Dir    listing.SortDirection `json:"d"`
}

// encodeCursor serializes a cursor to its opaque wire form.
func encodeCursor(c pageCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor parses an opaque cursor. "" decodes to the first page for
// the given spec. A cursor minted under a different sort spec is rejected.
func decodeCursor(s string, spec listing.SortSpec) (pageCursor, error) {
	if s == "" {
		return pageCursor{Field: spec.Field, Dir: spec.Dir}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return pageCursor{}, fmt.Errorf("malformed page cursor: %w", err)
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return pageCursor{}, fmt.Errorf("malformed page cursor: %w", err)
	}
	if c.Offset < 0 {
		return pageCursor{}, fmt.Errorf("malformed page cursor: negative offset")
	}
	if c.Field != spec.Field || c.Dir != spec.Dir {
		return pageCursor{}, fmt.Errorf("page cursor sort %s/%s does not match listing sort %s/%s",
			c.Field, c.Dir, spec.Field, spec.Dir)
	}
	return c, nil
}
