package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cumulus/internal/events"
	"cumulus/internal/httputil"
	"cumulus/internal/metrics"
)

// keepaliveInterval is how often an SSE comment is written so proxies
// don't drop idle connections.
const keepaliveInterval = 30 * time.Second

// EventsHandler streams node change events to clients via Server-Sent
// Events.
type EventsHandler struct {
	broadcaster *events.Broadcaster
	logger      *slog.Logger
	// Debug adds event IDs to the stream for easier client-side tracing.
	Debug bool
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *events.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Stream handles GET /api/events?workspace_id=...
// An optional workspace_id filters the stream to one workspace.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	workspaceID := r.URL.Query().Get("workspace_id")

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	ch := h.broadcaster.Subscribe()
	metrics.SetSSEConnectionsActive(h.broadcaster.Count())
	defer func() {
		h.broadcaster.Unsubscribe(ch)
		metrics.SetSSEConnectionsActive(h.broadcaster.Count())
	}()

	h.logger.Info("SSE client connected",
		"remote", r.RemoteAddr,
		"workspace_id", workspaceID,
	)

	// Send initial keepalive so the client knows the stream is live.
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	seq := 0
	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "remote", r.RemoteAddr)
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if workspaceID != "" && event.WorkspaceID != workspaceID {
				continue
			}
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}
			if h.Debug {
				seq++
				fmt.Fprintf(w, "id: %d\n", seq)
			}
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
