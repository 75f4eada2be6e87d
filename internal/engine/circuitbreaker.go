package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// ErrCircuitOpen is returned by Execute when the target's circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker tracks failures per target (an upstream host or an alert
// destination) in Redis so every replica shares the same view.
//
//   - Closed: calls go through, failures are counted.
//   - Open: calls are rejected until the cooldown has elapsed.
//   - Half-Open: one trial request is let through. Success closes, failure reopens.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	prefix           string
	failureThreshold int
	cooldownPeriod   time.Duration
}

// CircuitBreakerState represents the current state of a target's circuit.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

// NewCircuitBreaker creates a breaker whose keys live under prefix. It opens
// after 5 consecutive failures and lets a trial request through after 30 seconds.
func NewCircuitBreaker(redisClient *redis.Client, prefix string, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		prefix:           prefix,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
	}
}

func (cb *CircuitBreaker) key(target string) string {
	return fmt.Sprintf("cb:%s:%s", cb.prefix, target)
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds())
}

// AllowRequest checks if a call to target may proceed.
// Returns the current state and whether the request should proceed.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, target string) (string, bool) {
	key := cb.key(target)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if !cb.cooledDown(lastFailedAt) {
			return StateOpen, false
		}
		cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
		cb.logger.Info("circuit breaker half-open", "target", target, "breaker", cb.prefix)
		return StateHalfOpen, true

	case StateHalfOpen:
		return StateHalfOpen, true

	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, target string) {
	key := cb.key(target)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()
	if state == "" {
		// Nothing recorded yet, keep Redis clean for healthy targets.
		return
	}

	cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0)

	if state == StateHalfOpen {
		cb.logger.Info("circuit breaker closed (recovered)", "target", target, "breaker", cb.prefix)
	}
}

// RecordFailure counts a failure and opens the circuit once the threshold is
// reached or when the half-open trial failed.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, target string) {
	key := cb.key(target)

	var failuresCmd *redis.IntCmd
	var stateCmd *redis.StringCmd
	_, err := cb.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		failuresCmd = pipe.HIncrBy(ctx, key, "failures", 1)
		pipe.HSet(ctx, key, "last_failed_at", time.Now().Unix())
		stateCmd = pipe.HGet(ctx, key, "state")
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		cb.logger.Error("failed to record circuit breaker failure", "error", err, "target", target)
		return
	}

	failures := failuresCmd.Val()
	state := stateCmd.Val()

	switch {
	case state == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open trial failed)", "target", target, "breaker", cb.prefix)
	case state != StateOpen && failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened",
			"target", target,
			"breaker", cb.prefix,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	case state == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
// Errors for which isFailure returns false (for example 4xx responses) do not
// count against the target. A nil isFailure counts every error.
func (cb *CircuitBreaker) Execute(ctx context.Context, target string, fn func() error, isFailure func(error) bool) error {
	if _, allowed := cb.AllowRequest(ctx, target); !allowed {
		return fmt.Errorf("%s: %w", target, ErrCircuitOpen)
	}

	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		cb.RecordFailure(ctx, target)
		return err
	}
	cb.RecordSuccess(ctx, target)
	return err
}

// GetState returns the current circuit breaker state for a target.
func (cb *CircuitBreaker) GetState(ctx context.Context, target string) CircuitBreakerState {
	data, err := cb.redisClient.HGetAll(ctx, cb.key(target)).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	lastFailed, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if state == StateOpen && cb.cooledDown(lastFailed) {
		state = StateHalfOpen
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if lastFailed > 0 {
		result.LastFailedAt = time.Unix(lastFailed, 0).UTC().Format(time.RFC3339)
	}
	return result
}
