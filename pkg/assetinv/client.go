// Package assetinv is a client for the asset inventory service, which maps
// device identifiers and IP addresses to asset metadata.
package assetinv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client looks up assets by identifier.
type Client interface {
	Lookup(ctx context.Context, identifier string) (*Asset, error)
}

// Asset is an inventory entry for one device.
type Asset struct {
	Identifier string     `json:"identifier"`
	Hostname   string     `json:"hostname"`
	Model      string     `json:"model"`
	OS         string     `json:"os"`
	Owner      string     `json:"owner"`
	Location   string     `json:"location"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// ErrNotFound is returned when the identifier resolves to no asset.
var ErrNotFound = eris.New("assetinv: asset not found")

// APIError is a non-2xx, non-404 response from the inventory service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assetinv: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an asset inventory client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, identifier string) (*Asset, error) {
	if identifier == "" {
		return nil, eris.New("assetinv: empty identifier")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/assets/"+url.PathEscape(identifier), nil)
	if err != nil {
		return nil, eris.Wrap(err, "assetinv: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "assetinv: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "assetinv: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var asset Asset
	if err := json.Unmarshal(respBody, &asset); err != nil {
		return nil, eris.Wrap(err, "assetinv: unmarshal response")
	}
	return &asset, nil
}
