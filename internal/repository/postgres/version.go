package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
)

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(config *RepositoryConfig) repositories.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Append records a new version for a node, assigning the next number
func (r *PostgresVersionRepository) Append(ctx context.Context, v *models.NodeVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, node_id, number, size, hash, created_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(number), 0) + 1 FROM %s WHERE node_id = $2),
			$3, $4, $5)
		RETURNING number, created_at
	`, r.tables.NodeVersions, r.tables.NodeVersions)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		v.ID,
		v.NodeID,
		v.Size,
		v.Hash,
		v.CreatedAt,
	).Scan(&v.Number, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("append version: %w", err)
	}
	return nil
}

// ListByNode returns a node's versions, newest first
func (r *PostgresVersionRepository) ListByNode(ctx context.Context, nodeID string) ([]models.NodeVersion, error) {
	query := fmt.Sprintf(`
		SELECT id, node_id, number, size, hash, created_at
		FROM %s
		WHERE node_id = $1
		ORDER BY number DESC
	`, r.tables.NodeVersions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []models.NodeVersion
	for rows.Next() {
		var v models.NodeVersion
		if err := rows.Scan(&v.ID, &v.NodeID, &v.Number, &v.Size, &v.Hash, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteByNode removes all versions for a node
func (r *PostgresVersionRepository) DeleteByNode(ctx context.Context, nodeID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = $1`, r.tables.NodeVersions)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	return nil
}
