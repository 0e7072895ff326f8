package services

import (
	"context"

	"cumulus/internal/domain/models"
	"cumulus/internal/httputil"
)

// NodeService handles node business logic. Every mutation notifies the
// listing layer and the event broadcaster after the change is confirmed,
// never before.
type NodeService interface {
	// CreateFolder creates a new folder
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Node, error)

	// CreateFile registers a new file node (metadata only) and its first version
	CreateFile(ctx context.Context, req *CreateFileRequest) (*models.Node, error)

	// GetNode retrieves a node by ID
	GetNode(ctx context.Context, id, workspaceID string) (*models.Node, error)

	// UpdateNode renames and/or moves a node; for files a size/hash change
	// appends a new version
	UpdateNode(ctx context.Context, id string, req *UpdateNodeRequest) (*models.Node, error)

	// CopyNode copies a node (recursively for folders) into a target folder
	CopyNode(ctx context.Context, id string, req *CopyNodeRequest) (*models.Node, error)

	// TrashNode soft-deletes a node and its descendants
	TrashNode(ctx context.Context, id, workspaceID string) error

	// RestoreNode returns a trashed node to its folder
	RestoreNode(ctx context.Context, id, workspaceID string) (*models.Node, error)

	// DeleteNode permanently removes a trashed node
	DeleteNode(ctx context.Context, id, workspaceID string) error

	// ListTrash lists trashed nodes, most recently trashed first
	ListTrash(ctx context.Context, workspaceID string, limit, offset int) ([]models.Node, error)

	// Search finds nodes by name
	Search(ctx context.Context, opts *models.SearchOptions) (*models.SearchResults, error)

	// ListVersions returns a file node's version history, newest first
	ListVersions(ctx context.Context, id, workspaceID string) ([]models.NodeVersion, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	ParentID    *string `json:"parent_id,omitempty"` // null for workspace root
	Name        string  `json:"name"`
}

// CreateFileRequest represents a file creation request (metadata only)
type CreateFileRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Name        string  `json:"name"`
	Size        int64   `json:"size"`
	MimeType    string  `json:"mime_type,omitempty"`
	Hash        string  `json:"hash,omitempty"`
}

// UpdateNodeRequest represents a rename/move/content update.
// ParentID uses tri-state PATCH semantics: absent = keep, null = move to
// workspace root, value = move into that folder.
type UpdateNodeRequest struct {
	WorkspaceID string                  `json:"workspace_id"`
	Name        *string                 `json:"name,omitempty"`
	ParentID    httputil.OptionalString `json:"parent_id"`
	Size        *int64                  `json:"size,omitempty"` // files: new content version
	Hash        *string                 `json:"hash,omitempty"`
}

// CopyNodeRequest represents a copy request
type CopyNodeRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	ParentID    *string `json:"parent_id,omitempty"` // destination folder, null = root
	Name        *string `json:"name,omitempty"`      // optional new name for the copy
}
