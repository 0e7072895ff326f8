package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"cumulus/internal/config"
	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
	"cumulus/internal/domain/services"
	"cumulus/internal/events"
)

var nodeNamePattern = regexp.MustCompile(`^[^/]+$`)

type nodeService struct {
	nodeRepo    repositories.NodeRepository
	versionRepo repositories.VersionRepository
	txManager   repositories.TransactionManager
	listings    services.ListingService
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewNodeService creates a new node service
func NewNodeService(
	nodeRepo repositories.NodeRepository,
	versionRepo repositories.VersionRepository,
	txManager repositories.TransactionManager,
	listings services.ListingService,
	broadcaster *events.Broadcaster,
	logger *slog.Logger,
) services.NodeService {
	return &nodeService{
		nodeRepo:    nodeRepo,
		versionRepo: versionRepo,
		txManager:   txManager,
		listings:    listings,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// CreateFolder creates a new folder
func (s *nodeService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Node, error) {
	if err := s.validateCreateFolderRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	normalizeParent(&req.ParentID)

	if err := s.verifyParent(ctx, req.ParentID, req.WorkspaceID); err != nil {
		return nil, err
	}

	now := time.Now()
	node := &models.Node{
		ID:          uuid.New().String(),
		WorkspaceID: req.WorkspaceID,
		ParentID:    req.ParentID,
		Kind:        models.KindFolder,
		Name:        req.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.nodeRepo.Create(ctx, node); err != nil {
		return nil, err
	}

	s.afterCreate(node, events.EventCreate)

	s.logger.Info("folder created",
		"id", node.ID,
		"name", node.Name,
		"workspace_id", node.WorkspaceID,
		"parent_id", node.ParentID,
	)
	return node, nil
}

// CreateFile registers a new file node and its first version
func (s *nodeService) CreateFile(ctx context.Context, req *services.CreateFileRequest) (*models.Node, error) {
	if err := s.validateCreateFileRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	normalizeParent(&req.ParentID)

	if err := s.verifyParent(ctx, req.ParentID, req.WorkspaceID); err != nil {
		return nil, err
	}

	now := time.Now()
	size := req.Size
	node := &models.Node{
		ID:          uuid.New().String(),
		WorkspaceID: req.WorkspaceID,
		ParentID:    req.ParentID,
		Kind:        models.KindFile,
		Name:        req.Name,
		Size:        &size,
		MimeType:    req.MimeType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Node row and first version commit together.
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodeRepo.Create(txCtx, node); err != nil {
			return err
		}
		return s.versionRepo.Append(txCtx, &models.NodeVersion{
			ID:        uuid.New().String(),
			NodeID:    node.ID,
			Size:      req.Size,
			Hash:      req.Hash,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(node, events.EventCreate)

	s.logger.Info("file created",
		"id", node.ID,
		"name", node.Name,
		"workspace_id", node.WorkspaceID,
		"parent_id", node.ParentID,
		"size", req.Size,
	)
	return node, nil
}

// GetNode retrieves a node by ID
func (s *nodeService) GetNode(ctx context.Context, id, workspaceID string) (*models.Node, error) {
	return s.nodeRepo.GetByID(ctx, id, workspaceID)
}

// UpdateNode renames and/or moves a node; a size or hash change on a file
// appends a new content version
func (s *nodeService) UpdateNode(ctx context.Context, id string, req *services.UpdateNodeRequest) (*models.Node, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	node, err := s.nodeRepo.GetByID(ctx, id, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	old := *node

	if req.Name != nil {
		node.Name = *req.Name
	}

	moved := false
	if req.ParentID.Present {
		newParent := req.ParentID.Value
		if newParent != nil && *newParent == "" {
			newParent = nil
		}
		if !sameParent(node.ParentID, newParent) {
			if newParent != nil {
				if err := s.verifyParent(ctx, newParent, req.WorkspaceID); err != nil {
					return nil, err
				}
				if node.Kind.IsContainer() {
					if err := s.validateNoCircularReference(ctx, id, *newParent, req.WorkspaceID); err != nil {
						return nil, err
					}
				}
			}
			node.ParentID = newParent
			moved = true
		}
	}

	contentChanged := node.Kind == models.KindFile && (req.Size != nil || req.Hash != nil)
	if req.Size != nil {
		if node.Kind != models.KindFile {
			return nil, fmt.Errorf("%w: only files have a size", domain.ErrValidation)
		}
		size := *req.Size
		node.Size = &size
	}

	node.UpdatedAt = time.Now()

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodeRepo.Update(txCtx, node); err != nil {
			return err
		}
		if !contentChanged {
			return nil
		}
		hash := ""
		if req.Hash != nil {
			hash = *req.Hash
		}
		return s.versionRepo.Append(txCtx, &models.NodeVersion{
			ID:        uuid.New().String(),
			NodeID:    node.ID,
			Size:      node.SizeOrZero(),
			Hash:      hash,
			CreatedAt: node.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.listings.NodeUpdated(&old, node)
	event := events.Event{
		Type:        events.EventUpdate,
		WorkspaceID: node.WorkspaceID,
		NodeID:      node.ID,
		Node:        node,
		Timestamp:   node.UpdatedAt.UnixMilli(),
	}
	if moved {
		event.Type = events.EventMove
		event.OldParentID = old.ParentID
	}
	s.broadcaster.Publish(event)

	s.logger.Info("node updated",
		"id", node.ID,
		"name", node.Name,
		"parent_id", node.ParentID,
		"moved", moved,
	)
	return node, nil
}

// CopyNode copies a node, recursively for folders, into a target folder
func (s *nodeService) CopyNode(ctx context.Context, id string, req *services.CopyNodeRequest) (*models.Node, error) {
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id is required", domain.ErrValidation)
	}
	normalizeParent(&req.ParentID)

	src, err := s.nodeRepo.GetByID(ctx, id, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.verifyParent(ctx, req.ParentID, req.WorkspaceID); err != nil {
		return nil, err
	}
	if src.Kind.IsContainer() && req.ParentID != nil {
		// A folder copied into its own subtree would recurse forever.
		if *req.ParentID == id {
			return nil, fmt.Errorf("%w: cannot copy a folder into itself", domain.ErrValidation)
		}
		if err := s.validateNoCircularReference(ctx, id, *req.ParentID, req.WorkspaceID); err != nil {
			return nil, err
		}
	}

	name := src.Name
	if req.Name != nil && *req.Name != "" {
		if !nodeNamePattern.MatchString(*req.Name) {
			return nil, fmt.Errorf("%w: name cannot contain slashes", domain.ErrValidation)
		}
		name = *req.Name
	}

	var copied *models.Node
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		copied, err = s.copySubtree(txCtx, src, req.ParentID, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(copied, events.EventCopy)

	s.logger.Info("node copied",
		"source_id", src.ID,
		"copy_id", copied.ID,
		"name", copied.Name,
		"parent_id", copied.ParentID,
	)
	return copied, nil
}

// TrashNode soft-deletes a node and its descendants
func (s *nodeService) TrashNode(ctx context.Context, id, workspaceID string) error {
	node, err := s.nodeRepo.GetByID(ctx, id, workspaceID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.nodeRepo.Trash(ctx, id, workspaceID, now); err != nil {
		return err
	}

	s.listings.NodeRemoved(node)
	s.broadcaster.Publish(events.Event{
		Type:        events.EventTrash,
		WorkspaceID: workspaceID,
		NodeID:      id,
		Timestamp:   now.UnixMilli(),
	})

	s.logger.Info("node trashed", "id", id, "name", node.Name, "workspace_id", workspaceID)
	return nil
}

// RestoreNode returns a trashed node to its folder. If the original
// parent is gone or still trashed, the node lands at the workspace root.
func (s *nodeService) RestoreNode(ctx context.Context, id, workspaceID string) (*models.Node, error) {
	trashed, err := s.nodeRepo.GetTrashed(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.nodeRepo.Restore(ctx, id, workspaceID); err != nil {
		return nil, err
	}

	node, err := s.nodeRepo.GetByID(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}

	if node.ParentID != nil {
		if _, perr := s.nodeRepo.GetByID(ctx, *node.ParentID, workspaceID); perr != nil {
			s.logger.Warn("restore target folder unavailable, moving to root",
				"node_id", id, "parent_id", *node.ParentID)
			node.ParentID = nil
			node.UpdatedAt = time.Now()
			if err := s.nodeRepo.Update(ctx, node); err != nil {
				return nil, err
			}
		}
	}

	s.afterCreate(node, events.EventRestore)

	s.logger.Info("node restored",
		"id", id,
		"name", node.Name,
		"trashed_at", trashed.TrashedAt,
	)
	return node, nil
}

// DeleteNode permanently removes a trashed node and its version history
func (s *nodeService) DeleteNode(ctx context.Context, id, workspaceID string) error {
	node, err := s.nodeRepo.GetTrashed(ctx, id, workspaceID)
	if err != nil {
		return err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.versionRepo.DeleteByNode(txCtx, id); err != nil {
			return err
		}
		return s.nodeRepo.Delete(txCtx, id, workspaceID)
	})
	if err != nil {
		return err
	}

	s.broadcaster.Publish(events.Event{
		Type:        events.EventDelete,
		WorkspaceID: workspaceID,
		NodeID:      id,
		Timestamp:   time.Now().UnixMilli(),
	})

	s.logger.Info("node deleted", "id", id, "name", node.Name, "workspace_id", workspaceID)
	return nil
}

// ListTrash lists trashed nodes, most recently trashed first
func (s *nodeService) ListTrash(ctx context.Context, workspaceID string, limit, offset int) ([]models.Node, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id is required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.nodeRepo.ListTrash(ctx, workspaceID, limit, offset)
}

// Search finds nodes by name
func (s *nodeService) Search(ctx context.Context, opts *models.SearchOptions) (*models.SearchResults, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.nodeRepo.Search(ctx, opts)
}

// ListVersions returns a file node's version history, newest first
func (s *nodeService) ListVersions(ctx context.Context, id, workspaceID string) ([]models.NodeVersion, error) {
	node, err := s.nodeRepo.GetByID(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}
	if node.Kind != models.KindFile {
		return nil, fmt.Errorf("%w: only files have versions", domain.ErrValidation)
	}
	return s.versionRepo.ListByNode(ctx, id)
}

// copySubtree duplicates a node and, for containers, all descendants.
// Runs inside the caller's transaction.
func (s *nodeService) copySubtree(ctx context.Context, src *models.Node, parentID *string, name string) (*models.Node, error) {
	now := time.Now()
	copied := &models.Node{
		ID:          uuid.New().String(),
		WorkspaceID: src.WorkspaceID,
		ParentID:    parentID,
		Kind:        src.Kind,
		Name:        name,
		Size:        src.Size,
		MimeType:    src.MimeType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if copied.Kind == models.KindRoot {
		copied.Kind = models.KindFolder
	}

	if err := s.nodeRepo.Create(ctx, copied); err != nil {
		return nil, err
	}

	if src.Kind == models.KindFile {
		// The copy starts its own history at the source's latest content.
		hash := ""
		if versions, err := s.versionRepo.ListByNode(ctx, src.ID); err == nil && len(versions) > 0 {
			hash = versions[0].Hash
		}
		if err := s.versionRepo.Append(ctx, &models.NodeVersion{
			ID:        uuid.New().String(),
			NodeID:    copied.ID,
			Size:      copied.SizeOrZero(),
			Hash:      hash,
			CreatedAt: now,
		}); err != nil {
			return nil, err
		}
		return copied, nil
	}

	children, err := s.nodeRepo.ListAllChildren(ctx, src.WorkspaceID, &src.ID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		child := children[i]
		if _, err := s.copySubtree(ctx, &child, &copied.ID, child.Name); err != nil {
			return nil, err
		}
	}
	return copied, nil
}

// afterCreate fans a confirmed new node out to open listings and event
// subscribers.
func (s *nodeService) afterCreate(node *models.Node, eventType string) {
	s.listings.NodeCreated(node)
	s.broadcaster.Publish(events.Event{
		Type:        eventType,
		WorkspaceID: node.WorkspaceID,
		NodeID:      node.ID,
		Node:        node,
		Timestamp:   node.UpdatedAt.UnixMilli(),
	})
}

// verifyParent checks that a destination folder exists and can hold
// children. A nil parent is the workspace root and always valid.
func (s *nodeService) verifyParent(ctx context.Context, parentID *string, workspaceID string) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.nodeRepo.GetByID(ctx, *parentID, workspaceID)
	if err != nil {
		return fmt.Errorf("parent folder not found: %w", err)
	}
	if !parent.Kind.IsContainer() {
		return fmt.Errorf("%w: parent %q is not a folder", domain.ErrValidation, parent.Name)
	}
	return nil
}

// validateNoCircularReference ensures moving or copying a folder won't
// place it under its own subtree
func (s *nodeService) validateNoCircularReference(ctx context.Context, nodeID, newParentID, workspaceID string) error {
	if nodeID == newParentID {
		return fmt.Errorf("%w: cannot move a folder into itself", domain.ErrValidation)
	}

	currentID := newParentID
	for {
		parent, err := s.nodeRepo.GetByID(ctx, currentID, workspaceID)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == nodeID {
			return fmt.Errorf("%w: cannot move a folder into its own descendant", domain.ErrValidation)
		}
		currentID = *parent.ParentID
	}
}

func (s *nodeService) validateCreateFolderRequest(req *services.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.WorkspaceID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxNodeNameLength),
			validation.Match(nodeNamePattern).Error("name cannot contain slashes"),
		),
	)
}

func (s *nodeService) validateCreateFileRequest(req *services.CreateFileRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.WorkspaceID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxNodeNameLength),
			validation.Match(nodeNamePattern).Error("name cannot contain slashes"),
		),
		validation.Field(&req.Size, validation.Min(int64(0))),
	)
}

func (s *nodeService) validateUpdateRequest(req *services.UpdateNodeRequest) error {
	if req.Name == nil && !req.ParentID.Present && req.Size == nil && req.Hash == nil {
		return fmt.Errorf("at least one field must be provided")
	}

	rules := []*validation.FieldRules{
		validation.Field(&req.WorkspaceID, validation.Required),
	}
	if req.Name != nil {
		rules = append(rules,
			validation.Field(&req.Name,
				validation.Required,
				validation.Length(1, config.MaxNodeNameLength),
				validation.Match(nodeNamePattern).Error("name cannot contain slashes"),
			),
		)
	}
	if req.Size != nil {
		rules = append(rules, validation.Field(&req.Size, validation.Min(int64(0))))
	}
	return validation.ValidateStruct(req, rules...)
}

// normalizeParent maps an empty-string parent to nil (workspace root).
func normalizeParent(parentID **string) {
	if *parentID != nil && **parentID == "" {
		*parentID = nil
	}
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
