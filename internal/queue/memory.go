package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// Memory is an in-process Queue backed by a buffered channel. It exists for
// single-binary deployments and tests; a broker-backed implementation can
// replace it behind the same interface.
type Memory struct {
	ch     chan Delivery
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewMemory creates a Memory queue with the given buffer size.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{
		ch:   make(chan Delivery, size),
		done: make(chan struct{}),
	}
}

func (m *Memory) Enqueue(ctx context.Context, job model.JobDescriptor) error {
	return m.deliver(ctx, Delivery{Job: job, Attempt: 1})
}

func (m *Memory) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case d, ok := <-m.ch:
		if !ok {
			return Delivery{}, eris.New("queue: closed")
		}
		return d, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Requeue schedules the redelivery on a timer goroutine so the calling
// worker is freed immediately.
func (m *Memory) Requeue(ctx context.Context, d Delivery, backoff time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return eris.New("queue: closed")
	}
	m.wg.Add(1)
	m.mu.Unlock()

	next := Delivery{Job: d.Job, Attempt: d.Attempt + 1}
	go func() {
		defer m.wg.Done()
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
		if err := m.deliver(ctx, next); err != nil {
			zap.L().Warn("redelivery dropped",
				zap.String("ticket_id", next.Job.TicketID),
				zap.Int("attempt", next.Attempt),
				zap.Error(err))
		}
	}()
	return nil
}

// deliver registers the sender in the WaitGroup under the same lock as the
// closed check, so Close cannot close the channel while a send is pending.
// A sender blocked on a full buffer is released through the done channel.
func (m *Memory) deliver(ctx context.Context, d Delivery) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return eris.New("queue: closed")
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	select {
	case m.ch <- d:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "queue: enqueue")
	case <-m.done:
		return eris.New("queue: closed")
	}
}

// Close unblocks pending senders and redelivery timers, waits for them, then
// closes the channel. A Dequeue in progress returns an error once drained.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	close(m.ch)
	return nil
}
