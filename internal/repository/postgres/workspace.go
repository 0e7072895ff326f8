package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
)

const workspaceColumns = "id, owner_id, name, created_at, updated_at, deleted_at"

// PostgresWorkspaceRepository implements the WorkspaceRepository interface
type PostgresWorkspaceRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(config *RepositoryConfig) repositories.WorkspaceRepository {
	return &PostgresWorkspaceRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new workspace
func (r *PostgresWorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, r.tables.Workspaces)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		ws.ID,
		ws.OwnerID,
		ws.Name,
		ws.CreatedAt,
		ws.UpdatedAt,
	).Scan(&ws.CreatedAt, &ws.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("workspace %q: %w", ws.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// GetByID retrieves a workspace owned by the given user
func (r *PostgresWorkspaceRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Workspace, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, workspaceColumns, r.tables.Workspaces)

	var ws models.Workspace
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, ownerID).Scan(
		&ws.ID,
		&ws.OwnerID,
		&ws.Name,
		&ws.CreatedAt,
		&ws.UpdatedAt,
		&ws.DeletedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &ws, nil
}

// ListByOwner lists a user's workspaces, most recently updated first
func (r *PostgresWorkspaceRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Workspace, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, workspaceColumns, r.tables.Workspaces)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt, &ws.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// Update updates a workspace
func (r *PostgresWorkspaceRepository) Update(ctx context.Context, ws *models.Workspace) error {
	query := fmt.Sprintf(`
		UPDATE %s SET name = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND deleted_at IS NULL
	`, r.tables.Workspaces)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, ws.Name, ws.UpdatedAt, ws.ID, ws.OwnerID)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workspace %s: %w", ws.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a workspace
func (r *PostgresWorkspaceRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET deleted_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, r.tables.Workspaces)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
