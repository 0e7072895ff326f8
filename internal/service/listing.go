package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"cumulus/internal/config"
	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
	"cumulus/internal/domain/services"
	"cumulus/internal/listing"
	"cumulus/internal/metrics"
)

// openListing pairs a collection with the identity of the listing it
// caches. pageSize is fixed at open time.
type openListing struct {
	id          string
	workspaceID string
	parentID    *string
	pageSize    int
	coll        *listing.Collection
}

// listingService implements the ListingService interface. A single mutex
// guards the listing table and every collection: collection operations
// read-then-write two sequences and must never interleave. Page fetches
// run outside the lock; the collection generation decides afterwards
// whether the result may still be applied.
type listingService struct {
	nodeRepo repositories.NodeRepository
	logger   *slog.Logger

	mu       sync.Mutex
	listings map[string]*openListing
}

// NewListingService creates a new listing service
func NewListingService(nodeRepo repositories.NodeRepository, logger *slog.Logger) services.ListingService {
	return &listingService{
		nodeRepo: nodeRepo,
		logger:   logger,
		listings: make(map[string]*openListing),
	}
}

// Open creates a listing and fetches its first page
func (s *listingService) Open(ctx context.Context, req *services.OpenListingRequest) (*services.ListingState, error) {
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id is required", domain.ErrValidation)
	}
	if req.Sort == (listing.SortSpec{}) {
		req.Sort = listing.DefaultSort()
	}
	if !req.Sort.Valid() {
		return nil, fmt.Errorf("%w: invalid sort spec %s/%s", domain.ErrValidation, req.Sort.Field, req.Sort.Dir)
	}
	if req.PageSize <= 0 {
		req.PageSize = config.DefaultPageSize
	}
	if req.PageSize > config.MaxPageSize {
		return nil, fmt.Errorf("%w: page size cannot exceed %d", domain.ErrValidation, config.MaxPageSize)
	}

	l := &openListing{
		id:          uuid.New().String(),
		workspaceID: req.WorkspaceID,
		parentID:    req.ParentID,
		pageSize:    req.PageSize,
		coll:        listing.NewCollection(req.Sort),
	}

	page, err := s.nodeRepo.ListChildren(ctx, l.workspaceID, l.parentID, req.Sort, "", l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	promoted, err := l.coll.MergePage(page.Nodes, page.NextCursor, l.coll.Generation())
	if err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	metrics.ObservePageMerge(promoted)

	s.mu.Lock()
	s.listings[l.id] = l
	metrics.SetListingsOpen(len(s.listings))
	state := s.snapshot(l)
	s.mu.Unlock()

	s.logger.Info("listing opened",
		"listing_id", l.id,
		"workspace_id", l.workspaceID,
		"parent_id", l.parentID,
		"sort", req.Sort,
		"nodes", len(state.Nodes),
	)
	return state, nil
}

// Get returns a snapshot of an open listing
func (s *listingService) Get(id string) (*services.ListingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	return s.snapshot(l), nil
}

// LoadMore fetches and merges the next page. The repository call runs
// outside the lock; the generation captured before the fetch decides
// whether the result is still current when it lands. A stale result is
// logged and dropped without touching the collection.
func (s *listingService) LoadMore(ctx context.Context, id string) (*services.ListingState, error) {
	s.mu.Lock()
	l, ok := s.listings[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	if l.coll.Complete() {
		state := s.snapshot(l)
		s.mu.Unlock()
		return state, nil
	}
	gen := l.coll.Generation()
	cursor := l.coll.PageToken()
	spec := l.coll.Sort()
	s.mu.Unlock()

	page, err := s.nodeRepo.ListChildren(ctx, l.workspaceID, l.parentID, spec, cursor, l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("load more: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[id]
	if !ok || cur != l {
		// Listing closed (or reopened) while the fetch was in flight.
		metrics.IncStalePages()
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	promoted, err := l.coll.MergePage(page.Nodes, page.NextCursor, gen)
	if err != nil {
		if errors.Is(err, listing.ErrStalePage) {
			metrics.IncStalePages()
			s.logger.Debug("discarded stale page result", "listing_id", id)
			return s.snapshot(l), nil
		}
		return nil, err
	}
	metrics.ObservePageMerge(promoted)
	return s.snapshot(l), nil
}

// ChangeSort re-sorts a complete listing in place, or clears and
// refetches a partial one
func (s *listingService) ChangeSort(ctx context.Context, id string, spec listing.SortSpec) (*services.ListingState, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("%w: invalid sort spec %s/%s", domain.ErrValidation, spec.Field, spec.Dir)
	}

	s.mu.Lock()
	l, ok := s.listings[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	refetch := l.coll.ChangeSort(spec)
	if !refetch {
		state := s.snapshot(l)
		s.mu.Unlock()
		return state, nil
	}
	gen := l.coll.Generation()
	s.mu.Unlock()

	// Partial data cannot be re-sorted; refetch the first page under the
	// new spec.
	page, err := s.nodeRepo.ListChildren(ctx, l.workspaceID, l.parentID, spec, "", l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("change sort: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[id]
	if !ok || cur != l {
		metrics.IncStalePages()
		return nil, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	promoted, err := l.coll.MergePage(page.Nodes, page.NextCursor, gen)
	if err != nil {
		if errors.Is(err, listing.ErrStalePage) {
			metrics.IncStalePages()
			return s.snapshot(l), nil
		}
		return nil, err
	}
	metrics.ObservePageMerge(promoted)
	return s.snapshot(l), nil
}

// Position returns a node's index in the rendered sequence, -1 if absent
func (s *listingService) Position(id, nodeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return -1, fmt.Errorf("listing %s: %w", id, domain.ErrNotFound)
	}
	return l.coll.IndexOf(nodeID), nil
}

// Close discards a listing. Closing an unknown id is a no-op.
func (s *listingService) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[id]; !ok {
		return
	}
	delete(s.listings, id)
	metrics.SetListingsOpen(len(s.listings))
	s.logger.Info("listing closed", "listing_id", id)
}

// NodeCreated applies a confirmed create/copy-in to affected listings
func (s *listingService) NodeCreated(n *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.holds(n) {
			idx := l.coll.Insert(*n)
			s.logger.Debug("node inserted into listing",
				"listing_id", l.id, "node_id", n.ID, "position", idx)
		}
	}
}

// NodeUpdated applies a confirmed rename/move/content change. A move
// between folders removes the node from source listings and inserts it
// into destination listings; in-place changes re-place the node through
// the collection's upsert path.
func (s *listingService) NodeUpdated(old, updated *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		holdsOld := old != nil && l.holds(old)
		holdsNew := l.holds(updated)
		switch {
		case holdsOld && !holdsNew:
			l.coll.Remove(updated.ID)
		case holdsNew:
			l.coll.Insert(*updated)
		}
	}
}

// NodeRemoved applies a confirmed trash/delete/move-out
func (s *listingService) NodeRemoved(n *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.coll.Remove(n.ID) {
			s.logger.Debug("node removed from listing",
				"listing_id", l.id, "node_id", n.ID)
		}
	}
}

// holds reports whether the listing covers the node's parent folder.
func (l *openListing) holds(n *models.Node) bool {
	if l.workspaceID != n.WorkspaceID || n.TrashedAt != nil {
		return false
	}
	if l.parentID == nil || n.ParentID == nil {
		return l.parentID == nil && n.ParentID == nil
	}
	return *l.parentID == *n.ParentID
}

// snapshot builds a ListingState copy under the service lock.
func (s *listingService) snapshot(l *openListing) *services.ListingState {
	return &services.ListingState{
		ID:          l.id,
		WorkspaceID: l.workspaceID,
		ParentID:    l.parentID,
		Sort:        l.coll.Sort(),
		Nodes:       l.coll.Nodes(),
		Complete:    l.coll.Complete(),
		PageFull:    l.coll.PageFull(l.pageSize),
	}
}
