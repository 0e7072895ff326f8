package repositories

import (
	"context"
	"time"

	"cumulus/internal/domain/models"
	"cumulus/internal/listing"
)

// NodePage is one page of a folder listing. Cursor is opaque to callers;
// "" means the listing is exhausted.
type NodePage struct {
	Nodes      []models.Node
	NextCursor string
}

// NodeRepository defines data access operations for nodes
type NodeRepository interface {
	// Create creates a new node. A (workspace, parent, name, kind)
	// collision returns a *domain.ConflictError carrying the existing id.
	Create(ctx context.Context, node *models.Node) error

	// GetByID retrieves a non-trashed node scoped to a workspace
	GetByID(ctx context.Context, id, workspaceID string) (*models.Node, error)

	// GetTrashed retrieves a trashed node scoped to a workspace
	GetTrashed(ctx context.Context, id, workspaceID string) (*models.Node, error)

	// Update persists name/parent/size/mime changes
	Update(ctx context.Context, node *models.Node) error

	// ListChildren returns one page of a folder's immediate children,
	// ordered per spec. cursor "" starts from the first page.
	ListChildren(ctx context.Context, workspaceID string, parentID *string, spec listing.SortSpec, cursor string, limit int) (*NodePage, error)

	// ListAllChildren returns every immediate child (no pagination).
	// Used by recursive copy and trash.
	ListAllChildren(ctx context.Context, workspaceID string, parentID *string) ([]models.Node, error)

	// Trash soft-deletes a node and all of its descendants, stamping the
	// whole subtree with the same time
	Trash(ctx context.Context, id, workspaceID string, at time.Time) error

	// Restore clears the trashed state of a node and of the descendants
	// trashed in the same operation
	Restore(ctx context.Context, id, workspaceID string) error

	// Delete removes a node permanently. Descendants are removed by the
	// schema's ON DELETE CASCADE.
	Delete(ctx context.Context, id, workspaceID string) error

	// ListTrash returns trashed nodes, most recently trashed first
	ListTrash(ctx context.Context, workspaceID string, limit, offset int) ([]models.Node, error)

	// Search finds non-trashed nodes by name
	Search(ctx context.Context, opts *models.SearchOptions) (*models.SearchResults, error)
}
