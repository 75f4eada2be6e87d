package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/alert-notifications/internal/engine"
)

// Dispatcher polls the Redis notification queue for due jobs and hands them
// to the worker pool.
type Dispatcher struct {
	redisClient  *redis.Client
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
	depth        prometheus.Gauge
	done         chan struct{}
	once         sync.Once
}

func NewDispatcher(redisClient *redis.Client, pool *Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		redisClient:  redisClient,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
		done:         make(chan struct{}),
	}
}

// ReportDepth makes the dispatcher publish the queue length to g on every poll.
func (d *Dispatcher) ReportDepth(g prometheus.Gauge) {
	d.depth = g
}

// Start runs the polling loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	defer d.once.Do(func() { close(d.done) })
	d.logger.Info("dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// Done is closed once Start has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) poll(ctx context.Context) {
	if d.depth != nil {
		if n, err := d.redisClient.ZCard(ctx, engine.NotificationQueueKey).Result(); err == nil {
			d.depth.Set(float64(n))
		}
	}

	now := float64(time.Now().UnixMicro())
	results, err := d.redisClient.ZRangeByScoreWithScores(ctx, engine.NotificationQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatFloat(now),
		Count: d.batchSize,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("failed to poll notification queue", "error", err)
		}
		return
	}

	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}

		// ZRem decides which dispatcher instance owns the job.
		removed, err := d.redisClient.ZRem(ctx, engine.NotificationQueueKey, member).Result()
		if err != nil {
			d.logger.Error("failed to remove job from queue", "error", err)
			continue
		}
		if removed == 0 {
			continue
		}

		var job engine.NotificationJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			d.logger.Error("dropping malformed job", "error", err)
			continue
		}

		if !d.pool.Submit(ctx, job) {
			d.putBack(member, z.Score)
			return
		}
	}
}

// putBack returns a claimed job to the queue when shutdown interrupted the
// hand-off to a worker.
func (d *Dispatcher) putBack(member string, score float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.redisClient.ZAdd(ctx, engine.NotificationQueueKey, redis.Z{Score: score, Member: member}).Err(); err != nil {
		d.logger.Error("failed to return job to queue", "error", err)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
