package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Priya8975/alert-notifications/internal/store"
)

// SummaryStore aggregates alert and delivery statistics.
type SummaryStore interface {
	GetNotificationSummary(ctx context.Context) (*store.NotificationSummary, error)
}

// QueueDepthFunc reports the number of queued test notifications.
type QueueDepthFunc func(ctx context.Context) (int64, error)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

type DashboardHandler struct {
	store      SummaryStore
	queueDepth QueueDepthFunc
	clients    ClientCounter
	logger     *slog.Logger
}

func NewDashboardHandler(s SummaryStore, queueDepth QueueDepthFunc, clients ClientCounter, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: s, queueDepth: queueDepth, clients: clients, logger: logger}
}

type summaryResponse struct {
	store.NotificationSummary
	QueueDepth       int64 `json:"queue_depth"`
	WebSocketClients int   `json:"websocket_clients"`
}

// Summary returns alert counts and delivery statistics.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.GetNotificationSummary(r.Context())
	if err != nil {
		h.logger.Error("failed to get notification summary", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get summary")
		return
	}

	resp := summaryResponse{NotificationSummary: *summary}
	if h.queueDepth != nil {
		depth, err := h.queueDepth(r.Context())
		if err != nil {
			h.logger.Warn("failed to read queue depth", "error", err)
		}
		resp.QueueDepth = depth
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients.ClientCount()
	}

	respondJSON(w, http.StatusOK, resp)
}
