package services

import (
	"context"

	"cumulus/internal/domain/models"
	"cumulus/internal/listing"
)

// ListingService owns the node cache behind every open listing: one
// listing.Collection per browsing view, created when the view opens a
// folder and discarded when it navigates away. Mutation services feed it
// confirmed node change events; it never talks to the network itself
// beyond page fetches through the node repository.
type ListingService interface {
	// Open creates a listing and fetches its first page
	Open(ctx context.Context, req *OpenListingRequest) (*ListingState, error)

	// Get returns a snapshot of an open listing
	Get(id string) (*ListingState, error)

	// LoadMore fetches and merges the next page. Results that arrive
	// after the listing was reset or closed are discarded.
	LoadMore(ctx context.Context, id string) (*ListingState, error)

	// ChangeSort re-sorts a complete listing in place, or clears and
	// refetches a partial one
	ChangeSort(ctx context.Context, id string, spec listing.SortSpec) (*ListingState, error)

	// Position returns a node's index in the rendered sequence, -1 if absent
	Position(id, nodeID string) (int, error)

	// Close discards a listing
	Close(id string)

	// NodeCreated applies a confirmed create/copy-in to affected listings
	NodeCreated(n *models.Node)

	// NodeUpdated applies a confirmed rename/move/content change; old is
	// the pre-mutation snapshot so move-outs reach the source listing
	NodeUpdated(old, updated *models.Node)

	// NodeRemoved applies a confirmed trash/delete/move-out
	NodeRemoved(n *models.Node)
}

// OpenListingRequest opens a listing over a folder's children
type OpenListingRequest struct {
	WorkspaceID string           `json:"workspace_id"`
	ParentID    *string          `json:"parent_id,omitempty"` // null = workspace root
	Sort        listing.SortSpec `json:"sort"`
	PageSize    int              `json:"page_size,omitempty"`
}

// ListingState is a copy-on-write snapshot of an open listing handed to
// handlers; mutating it never affects the underlying collection.
type ListingState struct {
	ID          string           `json:"id"`
	WorkspaceID string           `json:"workspace_id"`
	ParentID    *string          `json:"parent_id,omitempty"`
	Sort        listing.SortSpec `json:"sort"`
	Nodes       []models.Node    `json:"nodes"`
	Complete    bool             `json:"complete"`
	PageFull    bool             `json:"page_full"`
}
