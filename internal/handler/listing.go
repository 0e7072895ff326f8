package handler

import (
	"log/slog"
	"net/http"

	"cumulus/internal/domain/services"
	"cumulus/internal/httputil"
	"cumulus/internal/listing"
)

// ListingHandler handles listing HTTP requests. Listings are server-side
// stateful: clients open one, page through it, and close it when done.
type ListingHandler struct {
	listingService services.ListingService
	logger         *slog.Logger
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listingService services.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		logger:         logger,
	}
}

// OpenListing opens a listing over a folder's children
// POST /api/listings
func (h *ListingHandler) OpenListing(w http.ResponseWriter, r *http.Request) {
	var req services.OpenListingRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.listingService.Open(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, state)
}

// GetListing returns the current state of an open listing
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	state, err := h.listingService.Get(id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// LoadMore fetches and merges the next page into the listing
// POST /api/listings/{id}/pages
func (h *ListingHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	state, err := h.listingService.LoadMore(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// ChangeSort switches the listing's sort order
// PUT /api/listings/{id}/sort
func (h *ListingHandler) ChangeSort(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	var spec listing.SortSpec
	if err := httputil.ParseJSON(w, r, &spec); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.listingService.ChangeSort(r.Context(), id, spec)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// GetPosition returns a node's index in the listing's rendered sequence
// GET /api/listings/{id}/position/{nodeID}
func (h *ListingHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nodeID := r.PathValue("nodeID")
	if id == "" || nodeID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Listing ID and node ID are required")
		return
	}

	pos, err := h.listingService.Position(id, nodeID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]int{"position": pos})
}

// CloseListing discards an open listing
// DELETE /api/listings/{id}
func (h *ListingHandler) CloseListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	h.listingService.Close(id)
	w.WriteHeader(http.StatusNoContent)
}
