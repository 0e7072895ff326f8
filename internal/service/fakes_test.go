package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
	"cumulus/internal/listing"
)

// fakeNodeRepo is an in-memory NodeRepository. Its ListChildren sorts
// with the listing comparator and pages with a plain-offset cursor, so
// service tests see the same page shapes the postgres repository
// produces.
type fakeNodeRepo struct {
	mu    sync.Mutex
	nodes map[string]*models.Node

	listCalls  int
	lastSpec   listing.SortSpec
	lastCursor string
}

func newFakeNodeRepo(seed ...models.Node) *fakeNodeRepo {
	r := &fakeNodeRepo{nodes: make(map[string]*models.Node)}
	for i := range seed {
		n := seed[i]
		r.nodes[n.ID] = &n
	}
	return r
}

func (r *fakeNodeRepo) Create(_ context.Context, node *models.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.nodes {
		if existing.WorkspaceID == node.WorkspaceID &&
			samePtr(existing.ParentID, node.ParentID) &&
			existing.Name == node.Name &&
			existing.Kind == node.Kind &&
			existing.TrashedAt == nil {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a %s named %q already exists in this location", node.Kind, node.Name),
				ResourceType: "node",
				ResourceID:   existing.ID,
			}
		}
	}
	cp := *node
	r.nodes[node.ID] = &cp
	return nil
}

func (r *fakeNodeRepo) GetByID(_ context.Context, id, workspaceID string) (*models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.WorkspaceID != workspaceID || n.TrashedAt != nil {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNodeRepo) GetTrashed(_ context.Context, id, workspaceID string) (*models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.WorkspaceID != workspaceID || n.TrashedAt == nil {
		return nil, fmt.Errorf("trashed node %s: %w", id, domain.ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNodeRepo) Update(_ context.Context, node *models.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.nodes[node.ID]
	if !ok || existing.WorkspaceID != node.WorkspaceID || existing.TrashedAt != nil {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}
	for _, other := range r.nodes {
		if other.ID != node.ID &&
			other.WorkspaceID == node.WorkspaceID &&
			samePtr(other.ParentID, node.ParentID) &&
			other.Name == node.Name &&
			other.Kind == node.Kind &&
			other.TrashedAt == nil {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a %s named %q already exists in this location", node.Kind, node.Name),
				ResourceType: "node",
				ResourceID:   other.ID,
			}
		}
	}
	cp := *node
	r.nodes[node.ID] = &cp
	return nil
}

func (r *fakeNodeRepo) ListChildren(_ context.Context, workspaceID string, parentID *string, spec listing.SortSpec, cursor string, limit int) (*repositories.NodePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.lastSpec = spec
	r.lastCursor = cursor

	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil {
			return nil, fmt.Errorf("%w: bad cursor", domain.ErrValidation)
		}
	}

	children := r.children(workspaceID, parentID)
	slices.SortFunc(children, func(a, b models.Node) int {
		return listing.Compare(&a, &b, spec)
	})

	page := &repositories.NodePage{}
	if offset >= len(children) {
		return page, nil
	}
	end := offset + limit
	if end >= len(children) {
		page.Nodes = children[offset:]
	} else {
		page.Nodes = children[offset:end]
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (r *fakeNodeRepo) ListAllChildren(_ context.Context, workspaceID string, parentID *string) ([]models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.children(workspaceID, parentID), nil
}

func (r *fakeNodeRepo) Trash(_ context.Context, id, workspaceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.WorkspaceID != workspaceID || n.TrashedAt != nil {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	r.trashSubtree(n, at)
	return nil
}

func (r *fakeNodeRepo) Restore(_ context.Context, id, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.WorkspaceID != workspaceID || n.TrashedAt == nil {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	at := *n.TrashedAt
	r.restoreSubtree(n, at)
	return nil
}

func (r *fakeNodeRepo) Delete(_ context.Context, id, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.WorkspaceID != workspaceID {
		return fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	delete(r.nodes, id)
	// Cascade like the schema's foreign key does.
	for cid, c := range r.nodes {
		if c.ParentID != nil && *c.ParentID == id {
			_ = r.deleteLocked(cid)
		}
	}
	return nil
}

func (r *fakeNodeRepo) deleteLocked(id string) error {
	delete(r.nodes, id)
	for cid, c := range r.nodes {
		if c.ParentID != nil && *c.ParentID == id {
			_ = r.deleteLocked(cid)
		}
	}
	return nil
}

func (r *fakeNodeRepo) ListTrash(_ context.Context, workspaceID string, limit, offset int) ([]models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Node
	for _, n := range r.nodes {
		if n.WorkspaceID == workspaceID && n.TrashedAt != nil {
			out = append(out, *n)
		}
	}
	slices.SortFunc(out, func(a, b models.Node) int {
		return b.TrashedAt.Compare(*a.TrashedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNodeRepo) Search(_ context.Context, opts *models.SearchOptions) (*models.SearchResults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []models.Node
	for _, n := range r.nodes {
		if n.WorkspaceID == opts.WorkspaceID && n.TrashedAt == nil &&
			strings.Contains(strings.ToLower(n.Name), strings.ToLower(opts.Query)) {
			matches = append(matches, *n)
		}
	}
	return models.NewSearchResults(matches, len(matches), opts), nil
}

func (r *fakeNodeRepo) children(workspaceID string, parentID *string) []models.Node {
	var out []models.Node
	for _, n := range r.nodes {
		if n.WorkspaceID == workspaceID && samePtr(n.ParentID, parentID) && n.TrashedAt == nil {
			out = append(out, *n)
		}
	}
	return out
}

func (r *fakeNodeRepo) trashSubtree(n *models.Node, at time.Time) {
	n.TrashedAt = &at
	n.UpdatedAt = at
	for _, c := range r.nodes {
		if c.ParentID != nil && *c.ParentID == n.ID && c.TrashedAt == nil {
			r.trashSubtree(c, at)
		}
	}
}

func (r *fakeNodeRepo) restoreSubtree(n *models.Node, at time.Time) {
	n.TrashedAt = nil
	for _, c := range r.nodes {
		if c.ParentID != nil && *c.ParentID == n.ID && c.TrashedAt != nil && c.TrashedAt.Equal(at) {
			r.restoreSubtree(c, at)
		}
	}
}

// fakeVersionRepo is an in-memory VersionRepository assigning sequential
// version numbers per node.
type fakeVersionRepo struct {
	mu       sync.Mutex
	versions map[string][]models.NodeVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[string][]models.NodeVersion)}
}

func (r *fakeVersionRepo) Append(_ context.Context, v *models.NodeVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.Number = len(r.versions[v.NodeID]) + 1
	r.versions[v.NodeID] = append(r.versions[v.NodeID], *v)
	return nil
}

func (r *fakeVersionRepo) ListByNode(_ context.Context, nodeID string) ([]models.NodeVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := r.versions[nodeID]
	out := make([]models.NodeVersion, len(vs))
	for i := range vs {
		out[len(vs)-1-i] = vs[i] // newest first
	}
	return out, nil
}

func (r *fakeVersionRepo) DeleteByNode(_ context.Context, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.versions, nodeID)
	return nil
}

// fakeTxManager runs the function directly; the fakes have no
// transactional state to roll back.
type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
