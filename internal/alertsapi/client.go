// Package alertsapi is a client for the event subscriptions REST API of a
// remote alerts service.
package alertsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Priya8975/alert-notifications/internal/domain"
	"github.com/Priya8975/alert-notifications/internal/engine"
)

const subscriptionsPath = "/api/v1/events/subscriptions"

var (
	// ErrNotFound is returned when the requested alert does not exist.
	ErrNotFound = errors.New("alert not found")
	// ErrCircuitOpen is returned while the upstream is considered down.
	ErrCircuitOpen = engine.ErrCircuitOpen
)

// APIError is a non-2xx answer from the upstream.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alerts api returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to {baseURL}/api/v1/events/subscriptions.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *engine.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. breaker may be nil.
func NewClient(baseURL string, breaker *engine.CircuitBreaker, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing alerts api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("alerts api url must be http(s), got %q", baseURL)
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// GetAllAlerts fetches one page of alert subscriptions.
func (c *Client) GetAllAlerts(ctx context.Context, params domain.ListParams) (*domain.AlertList, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.After != "" {
		q.Set("after", params.After)
	}
	if params.Before != "" {
		q.Set("before", params.Before)
	}
	if params.SubscriptionType != "" {
		q.Set("subscriptionType", string(params.SubscriptionType))
	}
	if params.Provider != "" {
		q.Set("provider", string(params.Provider))
	}
	if params.IncludeDeleted {
		q.Set("include", "all")
	}

	var list domain.AlertList
	if err := c.get(ctx, subscriptionsPath, q, &list); err != nil {
		var apiErr *APIError
		hasCursor := params.After != "" || params.Before != ""
		if hasCursor && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCursor, err)
		}
		return nil, err
	}
	if list.Data == nil {
		list.Data = []domain.AlertSubscription{}
	}
	return &list, nil
}

// GetAlertsFromName fetches a single alert by its fully qualified name.
func (c *Client) GetAlertsFromName(ctx context.Context, name string) (*domain.AlertSubscription, error) {
	var alert domain.AlertSubscription
	if err := c.get(ctx, subscriptionsPath+"/name/"+url.PathEscape(name), nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	call := func() error {
		return c.do(ctx, u.String(), out)
	}
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(ctx, c.baseURL.Host, call, countsAgainstUpstream)
}

func (c *Client) do(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling alerts api: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("alerts api call",
		"url", rawURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding alerts api response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body,
// falling back to the raw text.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(raw)
}

// countsAgainstUpstream reports whether err means the upstream is unhealthy.
// Client side errors do not trip the breaker.
func countsAgainstUpstream(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
