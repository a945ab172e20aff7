package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/orchestrator"
)

// processor is the orchestrator surface the pool drives.
type processor interface {
	Process(ctx context.Context, job model.JobDescriptor, attempt int) (orchestrator.Decision, error)
}

// Pool runs a fixed number of workers over a Queue. The size should track
// external system concurrency limits, not CPU count; every stage is
// I/O-bound.
type Pool struct {
	queue Queue
	proc  processor
	size  int
}

// NewPool creates a worker pool of the given size.
func NewPool(q Queue, proc processor, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{queue: q, proc: proc, size: size}
}

// Run blocks until ctx is cancelled or the queue closes, processing
// deliveries on p.size concurrent workers.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		worker := i
		g.Go(func() error {
			return p.work(ctx, worker)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context, worker int) error {
	log := zap.L().With(zap.Int("worker", worker))
	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Queue closed: normal shutdown.
			log.Debug("worker stopping", zap.Error(err))
			return nil
		}

		start := time.Now()
		decision, err := p.proc.Process(ctx, d.Job, d.Attempt)
		if err != nil && decision.Requeue {
			if rqErr := p.queue.Requeue(ctx, d, decision.Backoff); rqErr != nil {
				log.Error("requeue failed",
					zap.String("ticket_id", d.Job.TicketID),
					zap.Error(rqErr))
			}
		}
		log.Debug("delivery processed",
			zap.String("ticket_id", d.Job.TicketID),
			zap.Int("attempt", d.Attempt),
			zap.Bool("requeued", err != nil && decision.Requeue),
			zap.Duration("elapsed", time.Since(start)))
	}
}
