package repositories

import (
	"context"

	"cumulus/internal/domain/models"
)

// WorkspaceRepository defines data access operations for workspaces
type WorkspaceRepository interface {
	// Create creates a new workspace
	Create(ctx context.Context, ws *models.Workspace) error

	// GetByID retrieves a workspace owned by the given user
	GetByID(ctx context.Context, id, ownerID string) (*models.Workspace, error)

	// ListByOwner lists a user's workspaces, most recently updated first
	ListByOwner(ctx context.Context, ownerID string) ([]models.Workspace, error)

	// Update updates a workspace
	Update(ctx context.Context, ws *models.Workspace) error

	// Delete soft-deletes a workspace
	Delete(ctx context.Context, id, ownerID string) error
}
