package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
	"cumulus/internal/listing"
)

const nodeColumns = "id, workspace_id, parent_id, kind, name, size, mime_type, created_at, updated_at, trashed_at"

// PostgresNodeRepository implements the NodeRepository interface
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *RepositoryConfig) repositories.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new node
func (r *PostgresNodeRepository) Create(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, workspace_id, parent_id, kind, name, size, mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		node.ID,
		node.WorkspaceID,
		node.ParentID,
		node.Kind,
		node.Name,
		node.Size,
		node.MimeType,
		node.CreatedAt,
		node.UpdatedAt,
	).Scan(&node.CreatedAt, &node.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			existingID, queryErr := r.existingNodeID(ctx, node.WorkspaceID, node.ParentID, node.Name, node.Kind)
			if queryErr != nil {
				return fmt.Errorf("node %q already exists in this location: %w", node.Name, domain.ErrConflict)
			}
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a %s named %q already exists in this location", node.Kind, node.Name),
				ResourceType: "node",
				ResourceID:   existingID,
			}
		}
		return fmt.Errorf("create node: %w", err)
	}

	return nil
}

// GetByID retrieves a non-trashed node scoped to a workspace
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id, workspaceID string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND workspace_id = $2 AND trashed_at IS NULL
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	node, err := scanNodeRow(executor.QueryRow(ctx, query, id, workspaceID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// GetTrashed retrieves a trashed node scoped to a workspace
func (r *PostgresNodeRepository) GetTrashed(ctx context.Context, id, workspaceID string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND workspace_id = $2 AND trashed_at IS NOT NULL
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	node, err := scanNodeRow(executor.QueryRow(ctx, query, id, workspaceID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("trashed node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get trashed node: %w", err)
	}
	return node, nil
}

// Update persists name/parent/size/mime changes
func (r *PostgresNodeRepository) Update(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, size = $3, mime_type = $4, updated_at = $5
		WHERE id = $6 AND workspace_id = $7 AND trashed_at IS NULL
	`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		node.ParentID,
		node.Name,
		node.Size,
		node.MimeType,
		node.UpdatedAt,
		node.ID,
		node.WorkspaceID,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			existingID, queryErr := r.existingNodeID(ctx, node.WorkspaceID, node.ParentID, node.Name, node.Kind)
			if queryErr != nil {
				return fmt.Errorf("node %q already exists in this location: %w", node.Name, domain.ErrConflict)
			}
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a %s named %q already exists in this location", node.Kind, node.Name),
				ResourceType: "node",
				ResourceID:   existingID,
			}
		}
		return fmt.Errorf("update node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}
	return nil
}

// ListChildren returns one page of a folder's immediate children, ordered
// to match the listing comparator for the given spec. The window-based
// cursor tolerates concurrent inserts: duplicates across page boundaries
// are resolved by the reconciler.
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, workspaceID string, parentID *string, spec listing.SortSpec, cursor string, limit int) (*repositories.NodePage, error) {
	cur, err := decodeCursor(cursor, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: page limit must be positive", domain.ErrValidation)
	}

	// Fetch one extra row to learn whether another page exists.
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE workspace_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND trashed_at IS NULL
		ORDER BY %s
		LIMIT $3 OFFSET $4
	`, nodeColumns, r.tables.Nodes, orderByClause(spec))

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, workspaceID, parentID, limit+1, cur.Offset)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	page := &repositories.NodePage{}
	if len(nodes) > limit {
		page.Nodes = nodes[:limit]
		page.NextCursor = encodeCursor(pageCursor{
			Offset: cur.Offset + limit,
			Field:  spec.Field,
			Dir:    spec.Dir,
		})
	} else {
		page.Nodes = nodes
	}
	return page, nil
}

// ListAllChildren returns every immediate child of a folder
func (r *PostgresNodeRepository) ListAllChildren(ctx context.Context, workspaceID string, parentID *string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE workspace_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND trashed_at IS NULL
		ORDER BY name, id
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, workspaceID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list all children: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// Trash soft-deletes a node and its descendants. The whole subtree gets
// the same timestamp so Restore can recover it as one unit.
func (r *PostgresNodeRepository) Trash(ctx context.Context, id, workspaceID string, at time.Time) error {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM %[1]s
			WHERE id = $2 AND workspace_id = $3 AND trashed_at IS NULL
			UNION ALL
			SELECT n.id FROM %[1]s n
			JOIN subtree s ON n.parent_id = s.id
			WHERE n.trashed_at IS NULL
		)
		UPDATE %[1]s SET trashed_at = $1, updated_at = $1
		WHERE id IN (SELECT id FROM subtree)
	`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, at, id, workspaceID)
	if err != nil {
		return fmt.Errorf("trash node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Restore clears the trashed state of a node and of the descendants that
// share its trash timestamp. Descendants trashed separately beforehand
// stay in the trash.
func (r *PostgresNodeRepository) Restore(ctx context.Context, id, workspaceID string) error {
	query := fmt.Sprintf(`
		WITH RECURSIVE root AS (
			SELECT id, trashed_at FROM %[1]s
			WHERE id = $1 AND workspace_id = $2 AND trashed_at IS NOT NULL
		), subtree AS (
			SELECT id, trashed_at FROM root
			UNION ALL
			SELECT n.id, n.trashed_at FROM %[1]s n
			JOIN subtree s ON n.parent_id = s.id
			WHERE n.trashed_at = (SELECT trashed_at FROM root)
		)
		UPDATE %[1]s SET trashed_at = NULL, updated_at = NOW()
		WHERE id IN (SELECT id FROM subtree)
	`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, workspaceID)
	if err != nil {
		return fmt.Errorf("restore node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a node permanently
func (r *PostgresNodeRepository) Delete(ctx context.Context, id, workspaceID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE id = $1 AND workspace_id = $2
	`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListTrash returns trashed nodes, most recently trashed first
func (r *PostgresNodeRepository) ListTrash(ctx context.Context, workspaceID string, limit, offset int) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE workspace_id = $1 AND trashed_at IS NOT NULL
		ORDER BY trashed_at DESC, id
		LIMIT $2 OFFSET $3
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// Search finds non-trashed nodes by name match
func (r *PostgresNodeRepository) Search(ctx context.Context, opts *models.SearchOptions) (*models.SearchResults, error) {
	where := "workspace_id = $1 AND trashed_at IS NULL AND name ILIKE '%' || $2 || '%'"
	args := []interface{}{opts.WorkspaceID, opts.Query}

	if opts.FolderID != nil {
		args = append(args, *opts.FolderID)
		where += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	if opts.Kind != "" {
		args = append(args, opts.Kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.tables.Nodes, where)

	executor := GetExecutor(ctx, r.pool)
	var total int
	if err := executor.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count search results: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY lower(name), id
		LIMIT $%d OFFSET $%d
	`, nodeColumns, r.tables.Nodes, where, len(args)-1, len(args))

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}

	return models.NewSearchResults(nodes, total, opts), nil
}

// existingNodeID looks up the node that caused a unique violation
func (r *PostgresNodeRepository) existingNodeID(ctx context.Context, workspaceID string, parentID *string, name string, kind models.NodeKind) (string, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE workspace_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND name = $3 AND kind = $4 AND trashed_at IS NULL
	`, r.tables.Nodes)

	var id string
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, workspaceID, parentID, name, kind).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// orderByClause builds the ORDER BY matching listing.Compare: non-size
// sorts partition containers ahead of files (flipping with direction),
// size sorts ignore kind, and id breaks ties ascending in every case.
func orderByClause(spec listing.SortSpec) string {
	dir := "ASC"
	if spec.Dir == listing.SortDesc {
		dir = "DESC"
	}

	switch spec.Field {
	case listing.SortBySize:
		return fmt.Sprintf("COALESCE(size, 0) %s, id ASC", dir)
	case listing.SortByModified:
		return fmt.Sprintf("(CASE WHEN kind = 'file' THEN 1 ELSE 0 END) %s, updated_at %s, id ASC", dir, dir)
	default:
		return fmt.Sprintf("(CASE WHEN kind = 'file' THEN 1 ELSE 0 END) %s, lower(name) %s, id ASC", dir, dir)
	}
}

func scanNodeRow(row pgx.Row) (*models.Node, error) {
	var n models.Node
	err := row.Scan(
		&n.ID,
		&n.WorkspaceID,
		&n.ParentID,
		&n.Kind,
		&n.Name,
		&n.Size,
		&n.MimeType,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.TrashedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNodes(rows pgx.Rows) ([]models.Node, error) {
	var nodes []models.Node
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}
