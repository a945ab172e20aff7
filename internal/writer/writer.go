// Package writer pushes the synthesized text back to the external ticketing
// system as an idempotent note, with bounded retries and terminal-versus-
// retryable failure classification.
package writer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/resilience"
	"github.com/apexdesk/enrich-cli/internal/store"
	"github.com/apexdesk/enrich-cli/pkg/ticketing"
)

// TicketClientFactory builds a ticketing client for a tenant.
type TicketClientFactory func(ctx context.Context, tenantID string) (ticketing.Client, error)

// UpdateWriter writes enhancement notes to the ticketing system.
type UpdateWriter struct {
	clients TicketClientFactory
	retry   resilience.RetryConfig
}

// New creates an UpdateWriter with the standard ticketing retry policy.
func New(clients TicketClientFactory) *UpdateWriter {
	return &UpdateWriter{clients: clients, retry: resilience.UpdateRetryConfig()}
}

// IdempotencyKey derives the deduplication key for a note from the ticket id
// and the exact text. A redelivered job writing the same text maps to the
// same key, so the ticketing system drops the duplicate.
func IdempotencyKey(ticketID, text string) string {
	sum := sha256.Sum256([]byte(ticketID + "\x00" + text))
	return "enrich-" + hex.EncodeToString(sum[:16])
}

// Write pushes the outcome text as an internal note on the ticket.
//
// Classification: authentication failures and missing tickets are terminal
// and fail on the first attempt; timeouts and 5xx-class responses retry
// within the attempt budget. Budget exhaustion returns a retryable error so
// the orchestrator can requeue the whole job.
//
// An attempt already in flight is allowed to finish even if the job deadline
// fires mid-write; abandoning a request mid-flight leaves the external state
// ambiguous. Only the next retry is skipped once the deadline has passed.
func (w *UpdateWriter) Write(ctx context.Context, job model.JobDescriptor, outcome *model.SynthesisOutcome) error {
	client, err := w.clients(ctx, job.TenantID)
	if err != nil {
		wrapped := eris.Wrapf(err, "writer: client for tenant %s", job.TenantID)
		// Only a tenant with no configuration is hopeless; a store hiccup
		// during resolution deserves a redelivery.
		if errors.Is(err, store.ErrTenantNotFound) {
			return resilience.NewTerminalError(wrapped, 0)
		}
		return resilience.NewRetryableError(wrapped, 0)
	}

	req := ticketing.NoteRequest{
		TicketID:       job.TicketID,
		Body:           outcome.Text,
		Internal:       true,
		IdempotencyKey: IdempotencyKey(job.TicketID, outcome.Text),
	}

	cfg := w.retry
	cfg.OnRetry = resilience.RetryLogger("ticketing", "add_note")

	attempts := 0
	err = resilience.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		// Detached from the job deadline for the duration of one attempt;
		// the client's own timeout still bounds it.
		resp, err := client.AddNote(context.WithoutCancel(ctx), req)
		if err != nil {
			return classify(err)
		}
		zap.L().Info("ticket note written",
			zap.String("correlation_id", job.CorrelationID),
			zap.String("ticket_id", job.TicketID),
			zap.String("note_id", resp.NoteID),
			zap.Int("attempt", attempts))
		return nil
	})
	if err == nil {
		return nil
	}

	if resilience.IsTerminal(err) {
		return err
	}
	return resilience.NewRetryableError(
		eris.Wrapf(err, "writer: update failed after %d attempts", attempts), 0)
}

// classify maps a ticketing client error into the retryable/terminal
// taxonomy.
func classify(err error) error {
	var apiErr *ticketing.APIError
	if errors.As(err, &apiErr) {
		switch {
		case resilience.IsTerminalHTTPStatus(apiErr.StatusCode):
			return resilience.NewTerminalError(err, apiErr.StatusCode)
		case resilience.IsRetryableHTTPStatus(apiErr.StatusCode):
			return resilience.NewRetryableError(err, apiErr.StatusCode)
		default:
			// Unrecognized 4xx: not safe to assume a replay would differ.
			return resilience.NewTerminalError(err, apiErr.StatusCode)
		}
	}
	if resilience.IsRetryable(err) {
		return resilience.NewRetryableError(err, 0)
	}
	return fmt.Errorf("writer: %w", err)
}
