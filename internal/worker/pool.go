package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/alert-notifications/internal/engine"
)

// JobHandler processes one notification job.
type JobHandler interface {
	Deliver(ctx context.Context, job engine.NotificationJob)
}

// Pool runs a fixed number of workers reading from a shared jobs channel.
type Pool struct {
	numWorkers int
	jobs       chan engine.NotificationJob
	handler    JobHandler
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, handler JobHandler, logger *slog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan engine.NotificationJob, numWorkers*2),
		handler:    handler,
		logger:     logger,
	}
}

// Start launches the workers. They run until Stop closes the jobs channel.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands job to a worker, blocking while all workers are busy.
// It returns false when ctx is done before the job was accepted.
func (p *Pool) Submit(ctx context.Context, job engine.NotificationJob) bool {
	select {
	case p.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the jobs channel and waits for in-flight jobs. No Submit may
// run concurrently with or after Stop.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil {
			p.logger.Debug("skipping job after shutdown", "worker", id, "job_id", job.JobID)
			continue
		}
		p.handler.Deliver(ctx, job)
	}
}
