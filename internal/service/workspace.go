package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"cumulus/internal/config"
	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/repositories"
	"cumulus/internal/domain/services"
)

type workspaceService struct {
	workspaceRepo repositories.WorkspaceRepository
	logger        *slog.Logger
}

// NewWorkspaceService creates a new workspace service
func NewWorkspaceService(workspaceRepo repositories.WorkspaceRepository, logger *slog.Logger) services.WorkspaceService {
	return &workspaceService{
		workspaceRepo: workspaceRepo,
		logger:        logger,
	}
}

// CreateWorkspace creates a new workspace
func (s *workspaceService) CreateWorkspace(ctx context.Context, req *services.CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now()
	ws := &models.Workspace{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.workspaceRepo.Create(ctx, ws); err != nil {
		return nil, err
	}

	s.logger.Info("workspace created", "id", ws.ID, "name", ws.Name, "owner_id", ws.OwnerID)
	return ws, nil
}

// GetWorkspace retrieves a workspace by ID
func (s *workspaceService) GetWorkspace(ctx context.Context, id, ownerID string) (*models.Workspace, error) {
	return s.workspaceRepo.GetByID(ctx, id, ownerID)
}

// ListWorkspaces lists a user's workspaces
func (s *workspaceService) ListWorkspaces(ctx context.Context, ownerID string) ([]models.Workspace, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.workspaceRepo.ListByOwner(ctx, ownerID)
}

// UpdateWorkspace renames a workspace
func (s *workspaceService) UpdateWorkspace(ctx context.Context, id string, req *services.UpdateWorkspaceRequest) (*models.Workspace, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	ws, err := s.workspaceRepo.GetByID(ctx, id, req.OwnerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		ws.Name = *req.Name
	}
	ws.UpdatedAt = time.Now()

	if err := s.workspaceRepo.Update(ctx, ws); err != nil {
		return nil, err
	}

	s.logger.Info("workspace updated", "id", ws.ID, "name", ws.Name)
	return ws, nil
}

// DeleteWorkspace soft-deletes a workspace
func (s *workspaceService) DeleteWorkspace(ctx context.Context, id, ownerID string) error {
	ws, err := s.workspaceRepo.GetByID(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.workspaceRepo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Info("workspace deleted", "id", id, "name", ws.Name, "owner_id", ownerID)
	return nil
}

func (s *workspaceService) validateCreateRequest(req *services.CreateWorkspaceRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxWorkspaceNameLength),
		),
	)
}

func (s *workspaceService) validateUpdateRequest(req *services.UpdateWorkspaceRequest) error {
	if req.Name == nil {
		return fmt.Errorf("at least one field must be provided")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxWorkspaceNameLength),
		),
	)
}
