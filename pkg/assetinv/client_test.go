package assetinv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/LT-4421", r.URL.Path)
		assert.Equal(t, "Bearer ak-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"identifier": "LT-4421",
			"hostname": "jdoe-laptop",
			"model": "ThinkPad T14",
			"os": "Windows 11 23H2",
			"owner": "jdoe",
			"location": "Berlin office"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ak-1")
	asset, err := c.Lookup(context.Background(), "LT-4421")
	require.NoError(t, err)
	assert.Equal(t, "jdoe-laptop", asset.Hostname)
	assert.Equal(t, "Windows 11 23H2", asset.OS)
}

func TestLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Lookup(context.Background(), "UNKNOWN-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Lookup(context.Background(), "LT-1")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
