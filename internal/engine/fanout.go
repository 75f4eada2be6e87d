package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

const NotificationQueueKey = "notification_queue"

// DefaultMaxRetries bounds how often a failed test notification is retried.
const DefaultMaxRetries = 3

// NotificationJob is a single test notification for one destination of an
// alert, queued in Redis.
type NotificationJob struct {
	JobID            string                  `json:"job_id"`
	AlertID          string                  `json:"alert_id"`
	AlertName        string                  `json:"alert_name"`
	SubscriptionType domain.SubscriptionType `json:"subscription_type"`
	Destination      string                  `json:"destination"`
	SecretKey        string                  `json:"secret_key,omitempty"`
	Payload          json.RawMessage         `json:"payload"`
	TimeoutSeconds   int                     `json:"timeout_seconds"`
	ReadTimeout      int                     `json:"read_timeout_seconds"`
	BatchSize        int                     `json:"batch_size"`
	Attempt          int                     `json:"attempt"`
	MaxRetries       int                     `json:"max_retries"`
}

// TestPayload is the body sent to destinations by a test notification.
type TestPayload struct {
	Type        string                 `json:"type"`
	AlertID     string                 `json:"alertId"`
	AlertName   string                 `json:"alertName"`
	Message     string                 `json:"message"`
	Resources   []string               `json:"resources"`
	Rules       []domain.FilteringRule `json:"rules"`
	Timestamp   int64                  `json:"timestamp"`
	TriggeredBy string                 `json:"triggeredBy,omitempty"`
}

// FanOutEngine turns a test request for an alert into one queued job per
// destination.
type FanOutEngine struct {
	redisClient *redis.Client
	logger      *slog.Logger
	maxRetries  int
}

func NewFanOutEngine(redisClient *redis.Client, logger *slog.Logger) *FanOutEngine {
	return &FanOutEngine{
		redisClient: redisClient,
		logger:      logger,
		maxRetries:  DefaultMaxRetries,
	}
}

// FanOut queues a test notification for every destination of alert and
// returns the number of jobs queued.
func (f *FanOutEngine) FanOut(ctx context.Context, alert *domain.AlertSubscription, triggeredBy string) (int, error) {
	if !alert.Enabled || alert.Deleted {
		return 0, domain.ErrAlertDisabled
	}

	destinations := alert.Destinations()
	if len(destinations) == 0 {
		return 0, domain.ErrNoDestination
	}

	payload, err := json.Marshal(TestPayload{
		Type:        "test",
		AlertID:     alert.ID,
		AlertName:   alert.Name,
		Message:     fmt.Sprintf("Test notification for alert %q", alert.Name),
		Resources:   alert.FilteringRules.Resources,
		Rules:       alert.FilteringRules.Rules,
		Timestamp:   time.Now().UnixMilli(),
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling test payload: %w", err)
	}

	pipe := f.redisClient.Pipeline()
	queued := 0
	for _, dest := range destinations {
		job := NotificationJob{
			JobID:            uuid.NewString(),
			AlertID:          alert.ID,
			AlertName:        alert.Name,
			SubscriptionType: alert.SubscriptionType,
			Destination:      dest,
			SecretKey:        alert.SubscriptionConfig.SecretKey,
			Payload:          payload,
			TimeoutSeconds:   alert.Timeout,
			ReadTimeout:      alert.ReadTimeout,
			BatchSize:        alert.BatchSize,
			Attempt:          1,
			MaxRetries:       f.maxRetries,
		}

		jobBytes, err := json.Marshal(job)
		if err != nil {
			f.logger.Error("failed to marshal job", "error", err, "alert_id", alert.ID)
			continue
		}

		pipe.ZAdd(ctx, NotificationQueueKey, redis.Z{
			Score:  float64(time.Now().UnixMicro()),
			Member: string(jobBytes),
		})
		queued++
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queuing notifications to redis: %w", err)
	}

	f.logger.Info("fan-out complete",
		"alert_id", alert.ID,
		"alert_name", alert.Name,
		"notifications_queued", queued,
	)
	return queued, nil
}

// Requeue schedules job again after delay.
func (f *FanOutEngine) Requeue(ctx context.Context, job NotificationJob, delay time.Duration) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	return f.redisClient.ZAdd(ctx, NotificationQueueKey, redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMicro()),
		Member: string(jobBytes),
	}).Err()
}

// QueueDepth returns the current number of jobs waiting in the queue.
func (f *FanOutEngine) QueueDepth(ctx context.Context) (int64, error) {
	return f.redisClient.ZCard(ctx, NotificationQueueKey).Result()
}
