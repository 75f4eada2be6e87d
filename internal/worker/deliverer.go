package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"github.com/Priya8975/alert-notifications/internal/domain"
	"github.com/Priya8975/alert-notifications/internal/engine"
	"github.com/Priya8975/alert-notifications/internal/store"
)

// Headers set on HTTP test notifications.
const (
	HeaderSignature = "X-Alert-Signature"
	HeaderAlertID   = "X-Alert-ID"
	HeaderAlertName = "X-Alert-Name"
	HeaderJobID     = "X-Alert-Job"
	HeaderAttempt   = "X-Alert-Attempt"
)

const (
	defaultRequestTimeout = 10 * time.Second
	rateLimitedDelay      = time.Second
)

// errReadTimeout is the cause of a request cancelled because the destination
// did not answer within the alert's read timeout.
var errReadTimeout = errors.New("read timeout waiting for response")

// AttemptRecorder persists delivery attempts.
type AttemptRecorder interface {
	RecordDeliveryAttempt(ctx context.Context, rec store.DeliveryAttemptRecord) error
}

// Requeuer schedules a job to run again later.
type Requeuer interface {
	Requeue(ctx context.Context, job engine.NotificationJob, delay time.Duration) error
}

// Broadcaster publishes delivery events to live clients.
type Broadcaster interface {
	Broadcast(event domain.AlertEvent)
}

// DeliveryObserver is told the outcome and duration of every attempt.
type DeliveryObserver interface {
	ObserveDelivery(subscriptionType, status string, d time.Duration)
}

// DelivererDeps are the collaborators of a Deliverer. Recorder, Hub and
// Observer are optional.
type DelivererDeps struct {
	Recorder       AttemptRecorder
	Requeuer       Requeuer
	Email          EmailSender
	CircuitBreaker *engine.CircuitBreaker
	RateLimiter    *engine.RateLimiter
	Hub            Broadcaster
	Observer       DeliveryObserver
	Logger         *slog.Logger
}

// Deliverer sends a single test notification to its destination.
type Deliverer struct {
	httpClient      *http.Client
	recorder        AttemptRecorder
	requeuer        Requeuer
	email           EmailSender
	circuitBreaker  *engine.CircuitBreaker
	rateLimiter     *engine.RateLimiter
	hub             Broadcaster
	observer        DeliveryObserver
	logger          *slog.Logger
	retryBase       time.Duration
	readTimeoutUnit time.Duration
}

func NewDeliverer(deps DelivererDeps) *Deliverer {
	return &Deliverer{
		httpClient:      &http.Client{},
		recorder:        deps.Recorder,
		requeuer:        deps.Requeuer,
		email:           deps.Email,
		circuitBreaker:  deps.CircuitBreaker,
		rateLimiter:     deps.RateLimiter,
		hub:             deps.Hub,
		observer:        deps.Observer,
		logger:          deps.Logger,
		retryBase:       2 * time.Second,
		readTimeoutUnit: time.Second,
	}
}

// httpStatusError is a non-2xx response from an HTTP destination.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("destination returned status %d", e.code)
}

// Deliver sends job and records the outcome. Failed jobs are requeued with
// exponential backoff until MaxRetries attempts have been made.
func (d *Deliverer) Deliver(ctx context.Context, job engine.NotificationJob) {
	if d.rateLimiter != nil && !d.rateLimiter.Allow(ctx, job.AlertID, job.BatchSize) {
		d.logger.Debug("alert rate limited, deferring job", "alert_id", job.AlertID, "job_id", job.JobID)
		d.requeue(ctx, job, rateLimitedDelay)
		return
	}

	start := time.Now()
	var statusCode *int

	send := func() error {
		code, err := d.send(ctx, job)
		statusCode = code
		return err
	}

	var err error
	if d.circuitBreaker != nil {
		err = d.circuitBreaker.Execute(ctx, job.AlertID, send, nil)
	} else {
		err = send()
	}

	// An open circuit never reached the destination: no attempt, no retry.
	if errors.Is(err, engine.ErrCircuitOpen) {
		d.logger.Debug("circuit open, dropping job", "alert_id", job.AlertID, "job_id", job.JobID)
		return
	}

	elapsed := time.Since(start)
	d.recordAttempt(ctx, job, elapsed, statusCode, err)

	if err != nil && job.Attempt < job.MaxRetries {
		retry := job
		retry.Attempt++
		d.requeue(ctx, retry, d.backoff(job.Attempt))
	}
}

func (d *Deliverer) send(ctx context.Context, job engine.NotificationJob) (*int, error) {
	switch {
	case job.SubscriptionType.IsHTTP():
		return d.post(ctx, job)
	case job.SubscriptionType == domain.SubscriptionTypeEmail:
		if d.email == nil {
			return nil, ErrSMTPNotConfigured
		}
		subject := fmt.Sprintf("Test notification: %s", job.AlertName)
		return nil, d.email.Send(ctx, job.Destination, subject, job.Payload)
	default:
		return nil, fmt.Errorf("subscription type %q cannot be delivered", job.SubscriptionType)
	}
}

// post sends the payload as a signed JSON POST. The whole request is bounded
// by the alert's timeout; reading the response, from the moment the request
// is written, is bounded by its read timeout.
func (d *Deliverer) post(ctx context.Context, job engine.NotificationJob) (*int, error) {
	timeout := defaultRequestTimeout
	if job.TimeoutSeconds > 0 {
		timeout = time.Duration(job.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, cancelRead := context.WithCancelCause(ctx)
	defer cancelRead(nil)
	if job.ReadTimeout > 0 {
		readTimeout := time.Duration(job.ReadTimeout) * d.readTimeoutUnit
		readTimer := time.AfterFunc(readTimeout, func() { cancelRead(errReadTimeout) })
		readTimer.Stop()
		defer readTimer.Stop()
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { readTimer.Reset(readTimeout) },
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Destination, bytes.NewReader(job.Payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, computeHMAC(job.Payload, job.SecretKey))
	req.Header.Set(HeaderAlertID, job.AlertID)
	req.Header.Set(HeaderAlertName, job.AlertName)
	req.Header.Set(HeaderJobID, job.JobID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(job.Attempt))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(context.Cause(ctx), errReadTimeout) {
			return nil, fmt.Errorf("request failed: %w", errReadTimeout)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	code := resp.StatusCode
	if code < 200 || code >= 300 {
		return &code, &httpStatusError{code: code}
	}
	return &code, nil
}

func (d *Deliverer) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return d.retryBase * time.Duration(1<<(attempt-1))
}

func (d *Deliverer) requeue(ctx context.Context, job engine.NotificationJob, delay time.Duration) {
	if d.requeuer == nil {
		return
	}
	if err := d.requeuer.Requeue(ctx, job, delay); err != nil {
		d.logger.Error("failed to requeue job", "error", err, "job_id", job.JobID, "alert_id", job.AlertID)
	}
}

func (d *Deliverer) recordAttempt(ctx context.Context, job engine.NotificationJob, elapsed time.Duration, statusCode *int, deliveryErr error) {
	status := domain.DeliveryStatusSuccess
	eventType := domain.EventDeliverySuccess
	errMsg := ""
	if deliveryErr != nil {
		status = domain.DeliveryStatusFailed
		eventType = domain.EventDeliveryFailed
		errMsg = deliveryErr.Error()
	}

	if d.recorder != nil {
		err := d.recorder.RecordDeliveryAttempt(ctx, store.DeliveryAttemptRecord{
			AlertID:        job.AlertID,
			JobID:          job.JobID,
			Destination:    job.Destination,
			Status:         status,
			HTTPStatusCode: statusCode,
			ResponseTimeMs: int(elapsed.Milliseconds()),
			ErrorMessage:   errMsg,
		})
		if err != nil {
			d.logger.Error("failed to record delivery attempt",
				"error", err,
				"alert_id", job.AlertID,
				"job_id", job.JobID,
			)
		}
	}

	if d.observer != nil {
		d.observer.ObserveDelivery(string(job.SubscriptionType), status, elapsed)
	}

	if d.hub != nil {
		d.hub.Broadcast(domain.AlertEvent{
			Type:        eventType,
			AlertID:     job.AlertID,
			AlertName:   job.AlertName,
			Destination: job.Destination,
			StatusCode:  statusCode,
			ResponseMs:  elapsed.Milliseconds(),
			Error:       errMsg,
			Timestamp:   time.Now().UTC(),
		})
	}

	if deliveryErr == nil {
		d.logger.Info("test notification delivered",
			"alert_id", job.AlertID,
			"job_id", job.JobID,
			"destination", job.Destination,
			"attempt", job.Attempt,
			"status_code", statusCode,
			"response_time_ms", elapsed.Milliseconds(),
		)
		return
	}
	d.logger.Warn("test notification failed",
		"alert_id", job.AlertID,
		"job_id", job.JobID,
		"destination", job.Destination,
		"attempt", job.Attempt,
		"max_retries", job.MaxRetries,
		"error", errMsg,
		"status_code", statusCode,
	)
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
