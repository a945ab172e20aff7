// Package synth turns gathered context into the final recommendation text,
// either through the generative backend or through a deterministic fallback
// rendering when the backend is unavailable.
package synth

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/resilience"
	"github.com/apexdesk/enrich-cli/pkg/anthropic"
)

// MaxWords is the hard output-length contract. Enforcement is output policy,
// not advisory: text over the limit is truncated to exactly MaxWords words,
// truncation notice included.
const MaxWords = 500

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 1024
)

// truncationNotice is appended after truncation and counts toward MaxWords.
const truncationNotice = "[Output truncated at 500 words.]"

// Synthesizer renders a job plus its gathered context into an outcome.
type Synthesizer interface {
	Synthesize(ctx context.Context, job model.JobDescriptor, gathered *model.GatheredContext) (*model.SynthesisOutcome, error)
}

// Invoker is the stage entry point: it tries the backend once and falls back
// to the deterministic renderer on any backend failure. The fallback never
// fails, so Synthesize only returns an error on cancellation.
type Invoker struct {
	backend  Synthesizer
	fallback Synthesizer
}

// NewInvoker wires a backend synthesizer with the fallback renderer.
func NewInvoker(backend Synthesizer) *Invoker {
	return &Invoker{backend: backend, fallback: &FallbackSynthesizer{}}
}

func (inv *Invoker) Synthesize(ctx context.Context, job model.JobDescriptor, gathered *model.GatheredContext) (*model.SynthesisOutcome, error) {
	outcome, err := inv.backend.Synthesize(ctx, job, gathered)
	if err == nil {
		return outcome, nil
	}
	if ctx.Err() != nil {
		// The job deadline fired; no point rendering a fallback nobody
		// will write.
		return nil, eris.Wrap(ctx.Err(), "synth: cancelled")
	}

	zap.L().Warn("synthesis backend failed, using fallback",
		zap.String("correlation_id", job.CorrelationID),
		zap.String("ticket_id", job.TicketID),
		zap.String("kind", string(resilience.Classify(err))),
		zap.Error(err))

	return inv.fallback.Synthesize(ctx, job, gathered)
}

// BackendSynthesizer calls the generative backend with a hard timeout and a
// bounded max-output request.
type BackendSynthesizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// BackendOption configures a BackendSynthesizer.
type BackendOption func(*BackendSynthesizer)

// WithTimeout overrides the default 30s backend call timeout.
func WithTimeout(d time.Duration) BackendOption {
	return func(s *BackendSynthesizer) {
		s.timeout = d
	}
}

// WithMaxTokens overrides the default output token bound.
func WithMaxTokens(n int64) BackendOption {
	return func(s *BackendSynthesizer) {
		s.maxTokens = n
	}
}

// NewBackend creates a BackendSynthesizer for the given model.
func NewBackend(client anthropic.Client, modelID string, opts ...BackendOption) *BackendSynthesizer {
	s := &BackendSynthesizer{
		client:    client,
		model:     modelID,
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *BackendSynthesizer) Synthesize(ctx context.Context, job model.JobDescriptor, gathered *model.GatheredContext) (*model.SynthesisOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    []anthropic.SystemBlock{{Text: SystemPrompt(), CacheControl: &anthropic.CacheControl{TTL: "5m"}}},
		Messages:  []anthropic.Message{{Role: "user", Content: BuildPrompt(job, gathered)}},
	})
	if err != nil {
		return nil, resilience.NewRetryableError(eris.Wrap(err, "synth: backend call"), 0)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, resilience.NewRetryableError(eris.New("synth: empty backend response"), 0)
	}

	resp.Usage.LogCost(s.model, job.TenantID)

	text, words := EnforceWordLimit(text)
	return &model.SynthesisOutcome{
		Text:        text,
		WordCount:   words,
		ModelTokens: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// EnforceWordLimit truncates text to MaxWords words. When truncation occurs
// the notice is appended and its own words count toward the limit, so the
// result is always exactly MaxWords words or fewer.
func EnforceWordLimit(text string) (string, int) {
	words := strings.Fields(text)
	if len(words) <= MaxWords {
		return text, len(words)
	}

	noticeWords := len(strings.Fields(truncationNotice))
	kept := words[:MaxWords-noticeWords]
	out := strings.Join(kept, " ") + "\n\n" + truncationNotice
	return out, MaxWords
}
