package docsearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "outlook calendar", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer dk-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"id": "d1", "title": "Shared calendar troubleshooting", "snippet": "...", "score": 0.92},
				{"id": "d2", "title": "Outlook profile reset", "snippet": "...", "score": 0.77}
			],
			"total": 2
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "dk-1")
	resp, err := c.Search(context.Background(), SearchRequest{Query: "outlook calendar", Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Shared calendar troubleshooting", resp.Results[0].Title)
	assert.Equal(t, 0.92, resp.Results[0].Score)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := NewClient("http://unused", "k")
	resp, err := c.Search(context.Background(), SearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "index rebuilding"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Search(context.Background(), SearchRequest{Query: "anything"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}
