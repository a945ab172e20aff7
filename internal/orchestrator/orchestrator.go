// Package orchestrator sequences the three pipeline stages for one job,
// enforces the overall job deadline, maintains the audit record, and decides
// whether a failed job goes back to the queue.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/resilience"
)

const (
	defaultJobDeadline = 120 * time.Second

	// MaxJobAttempts caps queue-level redelivery for one job.
	MaxJobAttempts = 3

	requeueBackoff = 30 * time.Second
)

// Slices of the collaborating components, narrowed for testability.
type (
	recordStore interface {
		CreateRecord(ctx context.Context, job model.JobDescriptor) (*model.EnhancementRecord, error)
		CompleteRecord(ctx context.Context, recordID string, completion model.RecordCompletion) error
	}
	gatherer interface {
		Gather(ctx context.Context, job model.JobDescriptor) (*model.GatheredContext, error)
	}
	synthesizer interface {
		Synthesize(ctx context.Context, job model.JobDescriptor, gathered *model.GatheredContext) (*model.SynthesisOutcome, error)
	}
	noteWriter interface {
		Write(ctx context.Context, job model.JobDescriptor, outcome *model.SynthesisOutcome) error
	}
)

// Decision tells the queue what to do with the job after processing.
type Decision struct {
	Requeue bool
	Backoff time.Duration
}

// Orchestrator drives one job through aggregation, synthesis, and update.
type Orchestrator struct {
	store    recordStore
	gather   gatherer
	synth    synthesizer
	writer   noteWriter
	deadline time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithJobDeadline overrides the default 120s overall job deadline.
func WithJobDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.deadline = d
	}
}

// New creates an Orchestrator.
func New(store recordStore, gather gatherer, synth synthesizer, writer noteWriter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		gather:   gather,
		synth:    synth,
		writer:   writer,
		deadline: defaultJobDeadline,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs one delivery of a job end to end. attempt is the queue's
// 1-based delivery count. The returned Decision is meaningful only when err
// is non-nil: it says whether the queue should redeliver with backoff.
//
// The audit record is written exactly twice per delivery: pending at start,
// completed or failed at the end. Intermediate stages are observable through
// the correlation id in logs, not through record state.
func (o *Orchestrator) Process(ctx context.Context, job model.JobDescriptor, attempt int) (Decision, error) {
	job = job.Normalize()
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.New().String()
	}
	log := zap.L().With(
		zap.String("correlation_id", job.CorrelationID),
		zap.String("tenant_id", job.TenantID),
		zap.String("ticket_id", job.TicketID),
		zap.Int("attempt", attempt))

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	start := time.Now()

	rec, err := o.store.CreateRecord(ctx, job)
	if err != nil {
		// Without a record there is no audit trail; hand the delivery back.
		log.Error("record creation failed", zap.Error(err))
		return o.decide(attempt, resilience.NewRetryableError(err, 0)),
			eris.Wrap(err, "orchestrator: create record")
	}

	state := StatePending
	outcome, gathered, runErr := o.run(ctx, job, &state, log)

	elapsed := time.Since(start)
	if runErr == nil {
		o.finalize(ctx, rec.ID, model.RecordCompletion{
			Status:           model.RecordStatusCompleted,
			ContextGathered:  summaryOf(gathered),
			SynthesisOutput:  outcome.Text,
			UsedFallback:     outcome.UsedFallback,
			ProcessingTimeMs: elapsed.Milliseconds(),
		}, log)
		log.Info("job completed",
			zap.Bool("used_fallback", outcome.UsedFallback),
			zap.Int("word_count", outcome.WordCount),
			zap.Duration("elapsed", elapsed))
		return Decision{}, nil
	}

	state, _ = Transition(state, EventFailed)
	kind := resilience.Classify(runErr)
	o.finalize(ctx, rec.ID, model.RecordCompletion{
		Status:           model.RecordStatusFailed,
		ContextGathered:  summaryOf(gathered),
		ProcessingTimeMs: elapsed.Milliseconds(),
		ErrorMessage:     string(kind) + ": " + runErr.Error(),
	}, log)

	decision := o.decide(attempt, runErr)
	log.Error("job failed",
		zap.String("state", string(state)),
		zap.String("kind", string(kind)),
		zap.Bool("requeue", decision.Requeue),
		zap.Error(runErr))
	return decision, runErr
}

// run executes the three stages sequentially, advancing the state machine
// and checking the job deadline at each boundary.
func (o *Orchestrator) run(ctx context.Context, job model.JobDescriptor, state *State, log *zap.Logger) (*model.SynthesisOutcome, *model.GatheredContext, error) {
	var err error
	if *state, err = Transition(*state, EventStart); err != nil {
		return nil, nil, err
	}

	gathered, err := o.gather.Gather(ctx, job)
	if err != nil {
		return nil, nil, o.stageError(ctx, err, "aggregation")
	}
	if err := deadlineCheck(ctx); err != nil {
		return nil, gathered, err
	}
	if *state, err = Transition(*state, EventContextGathered); err != nil {
		return nil, gathered, err
	}
	log.Debug("stage complete", zap.String("state", string(*state)))

	outcome, err := o.synth.Synthesize(ctx, job, gathered)
	if err != nil {
		return nil, gathered, o.stageError(ctx, err, "synthesis")
	}
	if err := deadlineCheck(ctx); err != nil {
		return nil, gathered, err
	}
	if *state, err = Transition(*state, EventSynthesized); err != nil {
		return nil, gathered, err
	}
	log.Debug("stage complete", zap.String("state", string(*state)))

	if err := o.writer.Write(ctx, job, outcome); err != nil {
		return nil, gathered, o.stageError(ctx, err, "update")
	}
	if *state, err = Transition(*state, EventUpdated); err != nil {
		return nil, gathered, err
	}

	return outcome, gathered, nil
}

// stageError distinguishes the overall deadline firing from a stage-specific
// failure.
func (o *Orchestrator) stageError(ctx context.Context, err error, stage string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !resilience.IsTerminal(err) {
		return eris.Wrapf(resilience.ErrJobDeadline, "orchestrator: %s stage", stage)
	}
	return eris.Wrapf(err, "orchestrator: %s stage", stage)
}

func deadlineCheck(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resilience.ErrJobDeadline
	}
	return ctx.Err()
}

// finalize performs the second record write. The ticketing system is the
// source of truth by this point; the record is a best-effort audit log, so a
// failed write is retried once and then only logged. The ticketing write is
// never repeated on its account.
func (o *Orchestrator) finalize(ctx context.Context, recordID string, completion model.RecordCompletion, log *zap.Logger) {
	// The job deadline may already have fired; the audit write gets its own
	// small budget.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := o.store.CompleteRecord(ctx, recordID, completion)
	if err == nil {
		return
	}
	if err = o.store.CompleteRecord(ctx, recordID, completion); err != nil {
		log.Error("audit record finalization failed",
			zap.String("record_id", recordID),
			zap.Error(err))
	}
}

// decide maps a failure to the queue-level decision: retryable failures are
// redelivered with backoff while the attempt budget lasts, everything else
// is final.
func (o *Orchestrator) decide(attempt int, err error) Decision {
	if resilience.IsRetryable(err) && attempt < MaxJobAttempts {
		return Decision{Requeue: true, Backoff: requeueBackoff}
	}
	return Decision{}
}

func summaryOf(gathered *model.GatheredContext) *model.ContextSummary {
	if gathered == nil {
		return nil
	}
	s := gathered.Summary()
	return &s
}
