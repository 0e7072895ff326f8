package repositories

import (
	"context"

	"cumulus/internal/domain/models"
)

// VersionRepository defines data access operations for node version history
type VersionRepository interface {
	// Append records a new version for a node, assigning the next number
	Append(ctx context.Context, v *models.NodeVersion) error

	// ListByNode returns a node's versions, newest first
	ListByNode(ctx context.Context, nodeID string) ([]models.NodeVersion, error)

	// DeleteByNode removes all versions for a node (permanent delete)
	DeleteByNode(ctx context.Context, nodeID string) error
}
