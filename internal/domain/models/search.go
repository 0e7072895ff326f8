package models

import (
	"fmt"
)

// Default search configuration values
const (
	DefaultSearchLimit  = 25
	DefaultSearchOffset = 0
	MaxSearchLimit      = 100
)

// SearchOptions configures a node search. Search matches on node names;
// node content is out of scope for this service.
type SearchOptions struct {
	// Query is the search string (required)
	Query string

	// WorkspaceID limits the search to one workspace (required)
	WorkspaceID string

	// FolderID optionally restricts results to one folder's subtree root.
	// nil = search the whole workspace.
	FolderID *string

	// Kind optionally restricts results to one node kind ("" = any)
	Kind NodeKind

	// Pagination
	Limit  int
	Offset int
}

// ApplyDefaults fills in default values for unset fields
func (opts *SearchOptions) ApplyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.Offset < 0 {
		opts.Offset = DefaultSearchOffset
	}
}

// Validate checks that required fields are set and values are reasonable
func (opts *SearchOptions) Validate() error {
	if opts.Query == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	if opts.WorkspaceID == "" {
		return fmt.Errorf("workspace id is required")
	}
	if opts.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if opts.Limit > MaxSearchLimit {
		return fmt.Errorf("limit cannot exceed %d (requested: %d)", MaxSearchLimit, opts.Limit)
	}
	if opts.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}
	switch opts.Kind {
	case "", KindFolder, KindFile:
	default:
		return fmt.Errorf("invalid kind filter: %q", opts.Kind)
	}
	return nil
}

// SearchResults contains one page of matches with pagination metadata
type SearchResults struct {
	Nodes []Node `json:"nodes"`

	// TotalCount is the total number of matches regardless of limit/offset
	TotalCount int `json:"total_count"`

	// HasMore indicates if there are more results beyond this page
	HasMore bool `json:"has_more"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// NewSearchResults creates a SearchResults with the HasMore flag derived
// from the requested window.
func NewSearchResults(nodes []Node, totalCount int, opts *SearchOptions) *SearchResults {
	return &SearchResults{
		Nodes:      nodes,
		TotalCount: totalCount,
		HasMore:    (opts.Offset + len(nodes)) < totalCount,
		Offset:     opts.Offset,
		Limit:      opts.Limit,
	}
}
