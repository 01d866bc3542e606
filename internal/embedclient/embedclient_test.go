package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestIsAvailable_TrueWhenHealthOK(t *testing.T) {
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client := New(DefaultConfig(srv.URL, 8))
	assert.True(t, client.IsAvailable())
}

func TestIsAvailable_FalseWhenUnreachable(t *testing.T) {
	client := New(DefaultConfig("http://127.0.0.1:1", 8))
	assert.False(t, client.IsAvailable())
}

func TestIsAvailable_CachesResultWithinTTL(t *testing.T) {
	var calls int
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	cfg := DefaultConfig(srv.URL, 8)
	cfg.AvailabilityTTL = time.Hour
	client := New(cfg)

	assert.True(t, client.IsAvailable())
	assert.True(t, client.IsAvailable())
	assert.Equal(t, 1, calls)
}

func TestEmbed_ReturnsVectorFromService(t *testing.T) {
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)

		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	client := New(DefaultConfig(srv.URL, 3))
	vec, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_EmptyTextReturnsZeroVectorWithoutCallingService(t *testing.T) {
	var called bool
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	client := New(DefaultConfig(srv.URL, 4))
	vec, err := client.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), vec)
	assert.False(t, called)
}

func TestEmbed_NonOKStatusReturnsEmbeddingFailure(t *testing.T) {
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	client := New(DefaultConfig(srv.URL, 3))
	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
}

func TestEmbed_DimensionMismatchReturnsEmbeddingFailure(t *testing.T) {
	srv := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	})

	client := New(DefaultConfig(srv.URL, 5))
	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
}

func TestDim_ReturnsConfiguredDimension(t *testing.T) {
	client := New(DefaultConfig("http://unused", 768))
	assert.Equal(t, 768, client.Dim())
}
