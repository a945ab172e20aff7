// Package queue delivers job descriptors to the worker pool with
// at-least-once semantics and backoff redelivery.
package queue

import (
	"context"
	"time"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// Delivery is one handoff of a job to a worker. Attempt is 1-based and
// increments on every redelivery of the same job.
type Delivery struct {
	Job     model.JobDescriptor
	Attempt int
}

// Queue is the delivery contract the worker pool consumes.
type Queue interface {
	// Enqueue accepts a new job for first delivery.
	Enqueue(ctx context.Context, job model.JobDescriptor) error
	// Dequeue blocks until a delivery is available or ctx is done.
	Dequeue(ctx context.Context) (Delivery, error)
	// Requeue schedules a redelivery after the given backoff, with the
	// attempt count incremented.
	Requeue(ctx context.Context, d Delivery, backoff time.Duration) error
	Close() error
}
