package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

type testAPI struct {
	handler  http.Handler
	store    *memStore
	notifier *fakeNotifier
	hub      *fakeHub
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		hub:      &fakeHub{},
	}
	api.handler = NewRouter(RouterDeps{
		Store:    api.store,
		Notifier: api.notifier,
		Hub:      api.hub,
		PageSize: 15,
		Logger:   discardLogger(),
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return v
}

func emailAlert(name string) domain.AlertSubscription {
	return domain.AlertSubscription{
		Name:             name,
		SubscriptionType: domain.SubscriptionTypeEmail,
		SubscriptionConfig: domain.SubscriptionConfig{
			Receivers: []string{"team@example.com"},
		},
		FilteringRules: domain.FilteringRules{Resources: []string{"all"}},
		Enabled:        true,
		Provider:       domain.ProviderUser,
	}
}

func TestListAlerts(t *testing.T) {
	api := setupTestAPI(t)
	api.store.add(emailAlert("alert-test"))

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	list := decode[domain.AlertList](t, rec)
	if len(list.Data) != 1 || list.Data[0].Name != "alert-test" {
		t.Fatalf("unexpected data: %+v", list.Data)
	}
	if list.Paging.Total != 1 {
		t.Errorf("expected total 1, got %d", list.Paging.Total)
	}
	wantHref := "http://example.com/api/v1/events/subscriptions/" + list.Data[0].ID
	if list.Data[0].Href != wantHref {
		t.Errorf("href = %q, want %q", list.Data[0].Href, wantHref)
	}
}

func TestListAlerts_EmptyDataIsArray(t *testing.T) {
	api := setupTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty listing must serialize data as [], got %s", rec.Body.String())
	}
}

func TestListAlerts_Paging(t *testing.T) {
	api := setupTestAPI(t)
	for i := 0; i < 5; i++ {
		api.store.add(emailAlert(fmt.Sprintf("alert-%d", i)))
	}

	first := decode[domain.AlertList](t, api.do(t, http.MethodGet, "/api/v1/events/subscriptions?limit=2", ""))
	if len(first.Data) != 2 || first.Paging.Total != 5 || first.Paging.After == "" || first.Paging.Before != "" {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second := decode[domain.AlertList](t, api.do(t, http.MethodGet, "/api/v1/events/subscriptions?limit=2&after="+first.Paging.After, ""))
	if len(second.Data) != 2 || second.Data[0].Name != "alert-2" || second.Paging.Before == "" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	back := decode[domain.AlertList](t, api.do(t, http.MethodGet, "/api/v1/events/subscriptions?limit=2&before="+second.Paging.Before, ""))
	if len(back.Data) != 2 || back.Data[0].Name != "alert-0" {
		t.Fatalf("before cursor should return the first page, got %+v", back.Data)
	}
}

func TestListAlerts_Filters(t *testing.T) {
	api := setupTestAPI(t)
	api.store.add(emailAlert("email-alert"))
	hook := emailAlert("hook-alert")
	hook.SubscriptionType = domain.SubscriptionTypeWebhook
	api.store.add(hook)
	gone := emailAlert("gone-alert")
	gone.Deleted = true
	api.store.add(gone)

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?subscriptionType=Webhook", 1},
		{"?include=all", 3},
		{"?include=non-deleted", 2},
		{"?provider=system", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			list := decode[domain.AlertList](t, api.do(t, http.MethodGet, "/api/v1/events/subscriptions"+tt.query, ""))
			if list.Paging.Total != tt.want {
				t.Errorf("expected %d alerts, got %d", tt.want, list.Paging.Total)
			}
		})
	}
}

func TestListAlerts_BadParams(t *testing.T) {
	api := setupTestAPI(t)

	for _, q := range []string{
		"?limit=0",
		"?limit=1001",
		"?limit=abc",
		"?after=%21%21&limit=5",
		"?after=MA&before=MA",
		"?subscriptionType=Pager",
		"?provider=robot",
		"?include=deleted",
	} {
		t.Run(q, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions"+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestListAlerts_StoreError(t *testing.T) {
	api := setupTestAPI(t)
	api.store.err = errBoom

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error != "failed to list alerts" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestGetAlert(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/"+a.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[domain.AlertSubscription](t, rec); got.Name != "alert-test" {
		t.Errorf("unexpected alert: %+v", got)
	}

	if rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/00000000-0000-0000-0000-000000000000", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestGetAlertByName(t *testing.T) {
	api := setupTestAPI(t)
	api.store.add(emailAlert("team alerts"))

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/name/team%20alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[domain.AlertSubscription](t, rec); got.Name != "team alerts" {
		t.Errorf("unexpected alert: %+v", got)
	}

	if rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/name/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateAlert(t *testing.T) {
	api := setupTestAPI(t)
	body := `{"name":"alert-test","subscriptionType":"Email","subscriptionConfig":{"receivers":["a@example.com"]}}`

	rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.AlertSubscription](t, rec)
	if got.ID == "" || got.Version != domain.InitialVersion || !got.Enabled || got.UpdatedBy != "admin" {
		t.Errorf("unexpected alert: %+v", got)
	}
	if got.BatchSize != domain.DefaultBatchSize {
		t.Errorf("defaults not applied: %+v", got)
	}
	if types := api.hub.types(); len(types) != 1 || types[0] != domain.EventAlertCreated {
		t.Errorf("expected alert_created broadcast, got %v", types)
	}

	dup := api.do(t, http.MethodPost, "/api/v1/events/subscriptions", body)
	if dup.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", dup.Code)
	}
}

func TestCreateAlert_Invalid(t *testing.T) {
	api := setupTestAPI(t)

	for name, body := range map[string]string{
		"not json":     `{`,
		"missing name": `{"subscriptionType":"Email","subscriptionConfig":{"receivers":["a@example.com"]}}`,
		"bad type":     `{"name":"x","subscriptionType":"Pager"}`,
		"bad endpoint": `{"name":"x","subscriptionType":"Webhook","subscriptionConfig":{"endpoint":"nope"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions", body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestUpdateAlert(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))
	a.Version = domain.InitialVersion

	rec := api.do(t, http.MethodPatch, "/api/v1/events/subscriptions/"+a.ID, `{"description":"updated","enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.AlertSubscription](t, rec)
	if got.Description != "updated" || got.Enabled {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Version <= a.Version {
		t.Errorf("version should increase, got %v", got.Version)
	}
	if types := api.hub.types(); len(types) != 1 || types[0] != domain.EventAlertUpdated {
		t.Errorf("expected alert_updated broadcast, got %v", types)
	}

	if rec := api.do(t, http.MethodPatch, "/api/v1/events/subscriptions/"+a.ID, `{"batchSize":0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid batch size, got %d", rec.Code)
	}
}

func TestDeleteAlert(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))

	rec := api.do(t, http.MethodDelete, "/api/v1/events/subscriptions/"+a.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[domain.AlertSubscription](t, rec); !got.Deleted {
		t.Error("soft deleted alert should be marked deleted")
	}

	list := decode[domain.AlertList](t, api.do(t, http.MethodGet, "/api/v1/events/subscriptions", ""))
	if list.Paging.Total != 0 {
		t.Errorf("soft deleted alert should be hidden, got %d", list.Paging.Total)
	}

	if rec := api.do(t, http.MethodDelete, "/api/v1/events/subscriptions/"+a.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second soft delete should be 404, got %d", rec.Code)
	}

	if rec := api.do(t, http.MethodDelete, "/api/v1/events/subscriptions/"+a.ID+"?hardDelete=true", ""); rec.Code != http.StatusOK {
		t.Errorf("hard delete should succeed, got %d", rec.Code)
	}
	if _, ok := api.store.alerts[a.ID]; ok {
		t.Error("hard delete should remove the alert")
	}

	if rec := api.do(t, http.MethodDelete, "/api/v1/events/subscriptions/"+a.ID+"?hardDelete=maybe", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for removed alert, got %d", rec.Code)
	}
}

func TestTestNotification(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))

	rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions/"+a.ID+"/test", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	got := decode[testNotificationResponse](t, rec)
	if got.AlertID != a.ID || got.NotificationsQueued != 1 {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestTestNotification_Errors(t *testing.T) {
	api := setupTestAPI(t)
	disabled := emailAlert("disabled")
	disabled.Enabled = false
	d := api.store.add(disabled)

	if rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions/"+d.ID+"/test", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for disabled alert, got %d", rec.Code)
	}

	api.notifier.err = domain.ErrNoDestination
	a := api.store.add(emailAlert("alert-test"))
	if rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions/"+a.ID+"/test", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without destinations, got %d", rec.Code)
	}

	api.notifier.err = errBoom
	if rec := api.do(t, http.MethodPost, "/api/v1/events/subscriptions/"+a.ID+"/test", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when queueing fails, got %d", rec.Code)
	}
}

func TestDeliveries(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))
	api.store.attempts[a.ID] = []domain.DeliveryAttempt{
		{ID: "1", AlertID: a.ID, Status: domain.DeliveryStatusSuccess},
		{ID: "2", AlertID: a.ID, Status: domain.DeliveryStatusFailed},
	}

	rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/"+a.ID+"/deliveries?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[[]domain.DeliveryAttempt](t, rec); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("unexpected attempts: %+v", got)
	}
}

func TestDeliveries_LimitBounds(t *testing.T) {
	api := setupTestAPI(t)
	a := api.store.add(emailAlert("alert-test"))

	for _, q := range []string{"?limit=0", "?limit=-1", "?limit=1001", "?limit=abc"} {
		t.Run(q, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/"+a.ID+"/deliveries"+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}

	if rec := api.do(t, http.MethodGet, "/api/v1/events/subscriptions/"+a.ID+"/deliveries?limit=1000", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 at the maximum limit, got %d", rec.Code)
	}
}
