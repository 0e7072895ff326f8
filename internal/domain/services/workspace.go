package services

import (
	"context"

	"cumulus/internal/domain/models"
)

// WorkspaceService handles workspace business logic
type WorkspaceService interface {
	// CreateWorkspace creates a new workspace
	CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*models.Workspace, error)

	// GetWorkspace retrieves a workspace by ID
	GetWorkspace(ctx context.Context, id, ownerID string) (*models.Workspace, error)

	// ListWorkspaces lists a user's workspaces
	ListWorkspaces(ctx context.Context, ownerID string) ([]models.Workspace, error)

	// UpdateWorkspace renames a workspace
	UpdateWorkspace(ctx context.Context, id string, req *UpdateWorkspaceRequest) (*models.Workspace, error)

	// DeleteWorkspace soft-deletes a workspace
	DeleteWorkspace(ctx context.Context, id, ownerID string) error
}

// CreateWorkspaceRequest represents a workspace creation request
type CreateWorkspaceRequest struct {
	OwnerID string `json:"-"`
	Name    string `json:"name"`
}

// UpdateWorkspaceRequest represents a workspace update request
type UpdateWorkspaceRequest struct {
	OwnerID string  `json:"-"`
	Name    *string `json:"name,omitempty"`
}
