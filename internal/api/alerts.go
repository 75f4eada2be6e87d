package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

const (
	subscriptionsPath    = "/api/v1/events/subscriptions"
	defaultAttemptsLimit = 50
	maxBodyBytes         = 1 << 20
)

// AlertStore is the persistence used by AlertHandler.
type AlertStore interface {
	ListAlerts(ctx context.Context, params domain.ListParams) (*domain.AlertList, error)
	GetAlert(ctx context.Context, id string) (*domain.AlertSubscription, error)
	GetAlertByName(ctx context.Context, fqn string) (*domain.AlertSubscription, error)
	CreateAlert(ctx context.Context, req domain.CreateAlertRequest, createdBy string) (*domain.AlertSubscription, error)
	UpdateAlert(ctx context.Context, id string, req domain.UpdateAlertRequest, updatedBy string) (*domain.AlertSubscription, error)
	DeleteAlert(ctx context.Context, id string, hard bool, deletedBy string) (bool, error)
	ListDeliveryAttempts(ctx context.Context, alertID string, limit int) ([]domain.DeliveryAttempt, error)
}

// Notifier queues test notifications for an alert.
type Notifier interface {
	FanOut(ctx context.Context, alert *domain.AlertSubscription, triggeredBy string) (int, error)
}

// Broadcaster publishes alert changes to live clients.
type Broadcaster interface {
	Broadcast(event domain.AlertEvent)
}

type AlertHandler struct {
	store    AlertStore
	notifier Notifier
	hub      Broadcaster
	logger   *slog.Logger
	pageSize int
}

func NewAlertHandler(s AlertStore, n Notifier, hub Broadcaster, pageSize int, logger *slog.Logger) *AlertHandler {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &AlertHandler{store: s, notifier: n, hub: hub, logger: logger, pageSize: pageSize}
}

// actor names the user a change is attributed to.
func actor(r *http.Request) string {
	if u := r.Header.Get("X-Auth-User"); u != "" {
		return u
	}
	return "admin"
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func (h *AlertHandler) withHref(r *http.Request, a *domain.AlertSubscription) {
	a.Href = baseURL(r) + subscriptionsPath + "/" + a.ID
}

func (h *AlertHandler) broadcast(eventType string, a *domain.AlertSubscription) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(domain.AlertEvent{
		Type:      eventType,
		AlertID:   a.ID,
		AlertName: a.Name,
		Timestamp: time.Now().UTC(),
	})
}

// parseListParams reads the listing query. Errors are client errors.
func (h *AlertHandler) parseListParams(q url.Values) (domain.ListParams, error) {
	params := domain.ListParams{Limit: h.pageSize}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxPageSize {
			return params, errors.New("limit must be between 1 and 1000")
		}
		params.Limit = n
	}

	params.After = q.Get("after")
	params.Before = q.Get("before")
	if params.After != "" && params.Before != "" {
		return params, errors.New("only one of before or after may be set")
	}
	for _, c := range []string{params.After, params.Before} {
		if _, err := domain.DecodeCursor(c); err != nil {
			return params, err
		}
	}

	if v := q.Get("subscriptionType"); v != "" {
		t := domain.SubscriptionType(v)
		if !t.Valid() {
			return params, errors.New("unknown subscriptionType")
		}
		params.SubscriptionType = t
	}

	switch p := domain.ProviderType(q.Get("provider")); p {
	case "", domain.ProviderUser, domain.ProviderSystem:
		params.Provider = p
	default:
		return params, errors.New("provider must be user or system")
	}

	switch q.Get("include") {
	case "", "non-deleted":
	case "all":
		params.IncludeDeleted = true
	default:
		return params, errors.New("include must be all or non-deleted")
	}

	return params, nil
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseListParams(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.store.ListAlerts(r.Context(), params)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	for i := range list.Data {
		h.withHref(r, &list.Data[i])
	}
	respondJSON(w, http.StatusOK, list)
}

// loadAlert resolves the {id} URL parameter, answering the request itself
// when the id is invalid or unknown.
func (h *AlertHandler) loadAlert(w http.ResponseWriter, r *http.Request) (*domain.AlertSubscription, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return nil, false
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get alert", "error", err, "alert_id", id)
		respondError(w, http.StatusInternalServerError, "failed to get alert")
		return nil, false
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, "alert not found")
		return nil, false
	}
	return alert, true
}

func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	h.withHref(r, alert)
	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		respondError(w, http.StatusBadRequest, "invalid alert name")
		return
	}

	alert, err := h.store.GetAlertByName(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to get alert by name", "error", err, "name", name)
		respondError(w, http.StatusInternalServerError, "failed to get alert")
		return
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}

	h.withHref(r, alert)
	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAlertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.store.CreateAlert(r.Context(), req, actor(r))
	if errors.Is(err, domain.ErrDuplicateName) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to create alert", "error", err, "name", req.Name)
		respondError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	h.logger.Info("alert created", "alert_id", alert.ID, "name", alert.Name, "type", alert.SubscriptionType)
	h.broadcast(domain.EventAlertCreated, alert)
	h.withHref(r, alert)
	respondJSON(w, http.StatusCreated, alert)
}

func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	var req domain.UpdateAlertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(existing.SubscriptionType); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.store.UpdateAlert(r.Context(), existing.ID, req, actor(r))
	if err != nil {
		h.logger.Error("failed to update alert", "error", err, "alert_id", existing.ID)
		respondError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}

	if !req.Empty() {
		h.broadcast(domain.EventAlertUpdated, alert)
	}
	h.withHref(r, alert)
	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	hard := false
	if v := r.URL.Query().Get("hardDelete"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "hardDelete must be a boolean")
			return
		}
		hard = b
	}

	deleted, err := h.store.DeleteAlert(r.Context(), alert.ID, hard, actor(r))
	if err != nil {
		h.logger.Error("failed to delete alert", "error", err, "alert_id", alert.ID)
		respondError(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}

	h.logger.Info("alert deleted", "alert_id", alert.ID, "hard", hard)
	alert.Deleted = true
	h.broadcast(domain.EventAlertDeleted, alert)
	h.withHref(r, alert)
	respondJSON(w, http.StatusOK, alert)
}

type testNotificationResponse struct {
	AlertID             string `json:"alertId"`
	NotificationsQueued int    `json:"notificationsQueued"`
}

// Test queues a test notification to every destination of the alert.
func (h *AlertHandler) Test(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	queued, err := h.notifier.FanOut(r.Context(), alert, actor(r))
	switch {
	case errors.Is(err, domain.ErrAlertDisabled):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrNoDestination):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to queue test notification", "error", err, "alert_id", alert.ID)
		respondError(w, http.StatusInternalServerError, "failed to queue test notification")
		return
	}

	respondJSON(w, http.StatusAccepted, testNotificationResponse{
		AlertID:             alert.ID,
		NotificationsQueued: queued,
	})
}

// Deliveries lists the most recent delivery attempts of the alert.
func (h *AlertHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	limit := defaultAttemptsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxPageSize {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	attempts, err := h.store.ListDeliveryAttempts(r.Context(), alert.ID, limit)
	if err != nil {
		h.logger.Error("failed to list delivery attempts", "error", err, "alert_id", alert.ID)
		respondError(w, http.StatusInternalServerError, "failed to list delivery attempts")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}
