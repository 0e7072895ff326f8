package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/services"
	"cumulus/internal/httputil"
)

// NodeHandler handles node HTTP requests. Reads take the workspace from
// the workspace_id query parameter; mutations carry it in the body.
type NodeHandler struct {
	nodeService services.NodeService
	logger      *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodeService services.NodeService, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		nodeService: nodeService,
		logger:      logger,
	}
}

// HealthCheck reports service liveness
// GET /health
func (h *NodeHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateFolder creates a new folder
// POST /api/folders
// Returns 201 if created, 409 with the existing node if duplicate
func (h *NodeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req services.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.CreateFolder(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, err, func() (*models.Node, error) {
			var conflictErr *domain.ConflictError
			if errors.As(err, &conflictErr) {
				return h.nodeService.GetNode(r.Context(), conflictErr.ResourceID, req.WorkspaceID)
			}
			return nil, err
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// CreateFile registers a new file node
// POST /api/files
func (h *NodeHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req services.CreateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.CreateFile(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, err, func() (*models.Node, error) {
			var conflictErr *domain.ConflictError
			if errors.As(err, &conflictErr) {
				return h.nodeService.GetNode(r.Context(), conflictErr.ResourceID, req.WorkspaceID)
			}
			return nil, err
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// SearchNodes finds nodes by name
// GET /api/nodes/search?workspace_id=...&q=...
func (h *NodeHandler) SearchNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := &models.SearchOptions{
		Query:       q.Get("q"),
		WorkspaceID: q.Get("workspace_id"),
		Kind:        models.NodeKind(q.Get("kind")),
	}
	if folderID := q.Get("folder_id"); folderID != "" {
		opts.FolderID = &folderID
	}
	if limit := q.Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = v
	}
	if offset := q.Get("offset"); offset != "" {
		v, err := strconv.Atoi(offset)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = v
	}

	results, err := h.nodeService.Search(r.Context(), opts)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, results)
}

// GetNode retrieves a node by ID
// GET /api/nodes/{id}?workspace_id=...
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, workspaceID, ok := h.pathAndWorkspace(w, r)
	if !ok {
		return
	}

	node, err := h.nodeService.GetNode(r.Context(), id, workspaceID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// UpdateNode renames, moves, or updates the content metadata of a node
// PATCH /api/nodes/{id}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req services.UpdateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.UpdateNode(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// CopyNode copies a node into a target folder
// POST /api/nodes/{id}/copy
func (h *NodeHandler) CopyNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req services.CopyNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.CopyNode(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// TrashNode soft-deletes a node and its descendants
// POST /api/nodes/{id}/trash?workspace_id=...
func (h *NodeHandler) TrashNode(w http.ResponseWriter, r *http.Request) {
	id, workspaceID, ok := h.pathAndWorkspace(w, r)
	if !ok {
		return
	}

	if err := h.nodeService.TrashNode(r.Context(), id, workspaceID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreNode returns a trashed node to its folder
// POST /api/nodes/{id}/restore?workspace_id=...
func (h *NodeHandler) RestoreNode(w http.ResponseWriter, r *http.Request) {
	id, workspaceID, ok := h.pathAndWorkspace(w, r)
	if !ok {
		return
	}

	node, err := h.nodeService.RestoreNode(r.Context(), id, workspaceID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode permanently removes a trashed node
// DELETE /api/nodes/{id}?workspace_id=...
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, workspaceID, ok := h.pathAndWorkspace(w, r)
	if !ok {
		return
	}

	if err := h.nodeService.DeleteNode(r.Context(), id, workspaceID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTrash lists trashed nodes
// GET /api/trash?workspace_id=...
func (h *NodeHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	nodes, err := h.nodeService.ListTrash(r.Context(), workspaceID, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	if nodes == nil {
		nodes = []models.Node{}
	}

	httputil.RespondJSON(w, http.StatusOK, nodes)
}

// ListVersions returns a file node's version history
// GET /api/nodes/{id}/versions?workspace_id=...
func (h *NodeHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, workspaceID, ok := h.pathAndWorkspace(w, r)
	if !ok {
		return
	}

	versions, err := h.nodeService.ListVersions(r.Context(), id, workspaceID)
	if err != nil {
		handleError(w, err)
		return
	}
	if versions == nil {
		versions = []models.NodeVersion{}
	}

	httputil.RespondJSON(w, http.StatusOK, versions)
}

// pathAndWorkspace extracts the {id} path value and workspace_id query
// parameter, writing a 400 response when either is missing.
func (h *NodeHandler) pathAndWorkspace(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return "", "", false
	}
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "workspace_id is required")
		return "", "", false
	}
	return id, workspaceID, true
}
