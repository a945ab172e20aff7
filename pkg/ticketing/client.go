// Package ticketing is a REST client for the external ticketing system the
// pipeline writes enhancement notes back to. Endpoints and credentials are
// per tenant, so callers construct one client per tenant config.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client performs ticket operations against the ticketing API.
type Client interface {
	AddNote(ctx context.Context, req NoteRequest) (*NoteResponse, error)
	GetTicket(ctx context.Context, ticketID string) (*Ticket, error)
}

// NoteRequest is the request body for POST /tickets/{id}/notes.
//
// IdempotencyKey is sent as the Idempotency-Key header; the ticketing system
// deduplicates notes by it, so retrying the same request never produces a
// duplicate note.
type NoteRequest struct {
	TicketID       string `json:"-"`
	Body           string `json:"body"`
	Internal       bool   `json:"internal"`
	IdempotencyKey string `json:"-"`
}

// NoteResponse is the response from a successful note creation.
type NoteResponse struct {
	NoteID    string    `json:"note_id"`
	TicketID  string    `json:"ticket_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket is the subset of ticket fields the pipeline reads.
type Ticket struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// APIError is a non-2xx response from the ticketing API. Callers classify
// it by StatusCode.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticketing: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a ticketing API client for one tenant's endpoint.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) AddNote(ctx context.Context, req NoteRequest) (*NoteResponse, error) {
	if req.TicketID == "" {
		return nil, eris.New("ticketing: empty ticket id")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ticketing: rate limit wait")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: marshal note")
	}

	url := fmt.Sprintf("%s/tickets/%s/notes", c.baseURL, req.TicketID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result NoteResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "ticketing: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ticketing: rate limit wait")
	}

	url := fmt.Sprintf("%s/tickets/%s", c.baseURL, ticketID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ticketing: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var t Ticket
	if err := json.Unmarshal(respBody, &t); err != nil {
		return nil, eris.Wrap(err, "ticketing: unmarshal ticket")
	}
	return &t, nil
}
