package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Priya8975/alert-notifications/internal/domain"
	"github.com/Priya8975/alert-notifications/internal/store"
)

// memStore is an in-memory Store with the same paging semantics as the
// Postgres store.
type memStore struct {
	mu       sync.Mutex
	alerts   map[string]*domain.AlertSubscription
	attempts map[string][]domain.DeliveryAttempt
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		alerts:   map[string]*domain.AlertSubscription{},
		attempts: map[string][]domain.DeliveryAttempt{},
	}
}

func (m *memStore) ListAlerts(_ context.Context, params domain.ListParams) (*domain.AlertList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	offset, limit, err := params.Window()
	if err != nil {
		return nil, err
	}

	var matched []domain.AlertSubscription
	for _, a := range m.alerts {
		if a.Deleted && !params.IncludeDeleted {
			continue
		}
		if params.SubscriptionType != "" && a.SubscriptionType != params.SubscriptionType {
			continue
		}
		if params.Provider != "" && a.Provider != params.Provider {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	page := []domain.AlertSubscription{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		page = append(page, matched[i])
	}
	return &domain.AlertList{Data: page, Paging: domain.NewPaging(len(matched), offset, len(page))}, nil
}

func (m *memStore) GetAlert(_ context.Context, id string) (*domain.AlertSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetAlertByName(_ context.Context, fqn string) (*domain.AlertSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.FullyQualifiedName == fqn {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateAlert(_ context.Context, req domain.CreateAlertRequest, createdBy string) (*domain.AlertSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.FullyQualifiedName == req.Name {
			return nil, domain.ErrDuplicateName
		}
	}
	a := &domain.AlertSubscription{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		FullyQualifiedName: req.Name,
		Description:        req.Description,
		Version:            domain.InitialVersion,
		UpdatedBy:          createdBy,
		FilteringRules:     req.FilteringRules,
		SubscriptionType:   req.SubscriptionType,
		SubscriptionConfig: req.SubscriptionConfig,
		Enabled:            *req.Enabled,
		BatchSize:          req.BatchSize,
		Timeout:            req.Timeout,
		ReadTimeout:        req.ReadTimeout,
		Provider:           req.Provider,
	}
	m.alerts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memStore) UpdateAlert(_ context.Context, id string, req domain.UpdateAlertRequest, updatedBy string) (*domain.AlertSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.BatchSize != nil {
		a.BatchSize = *req.BatchSize
	}
	if !req.Empty() {
		a.Version += domain.VersionStep
		a.UpdatedBy = updatedBy
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) DeleteAlert(_ context.Context, id string, hard bool, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return false, nil
	}
	if hard {
		delete(m.alerts, id)
		return true, nil
	}
	if a.Deleted {
		return false, nil
	}
	a.Deleted = true
	return true, nil
}

func (m *memStore) ListDeliveryAttempts(_ context.Context, alertID string, limit int) ([]domain.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempts := append([]domain.DeliveryAttempt{}, m.attempts[alertID]...)
	if len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}

func (m *memStore) GetNotificationSummary(context.Context) (*store.NotificationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &store.NotificationSummary{ByType: map[domain.SubscriptionType]int{}}
	for _, a := range m.alerts {
		if a.Deleted {
			s.DeletedAlerts++
			continue
		}
		s.TotalAlerts++
		if a.Enabled {
			s.EnabledAlerts++
		}
		s.ByType[a.SubscriptionType]++
	}
	return s, nil
}

func (m *memStore) add(a domain.AlertSubscription) *domain.AlertSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.FullyQualifiedName == "" {
		a.FullyQualifiedName = a.Name
	}
	m.alerts[a.ID] = &a
	return &a
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) FanOut(_ context.Context, alert *domain.AlertSubscription, _ string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if !alert.Enabled || alert.Deleted {
		return 0, domain.ErrAlertDisabled
	}
	return len(alert.Destinations()), nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (f *fakeHub) Broadcast(e domain.AlertEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeHub) ClientCount() int { return 2 }

func (f *fakeHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (f *fakeHub) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
