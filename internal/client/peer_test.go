package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderpipe/internal/config"
	"orderpipe/internal/models"
)

func newTestPeer(baseURL string) *Peer {
	cfg := &config.Config{
		Peer: config.PeerConfig{
			BaseURL:        baseURL,
			RequestTimeout: time.Second,
			MaxAttempts:    3,
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxFailures:      100,
			Timeout:          30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	return NewPeer(cfg, "/sync/order", &logger)
}

func TestPeer_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sync/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		},
	))
	defer server.Close()

	assert.True(t, newTestPeer(server.URL).Healthy(context.Background()))
}

func TestPeer_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	))
	defer server.Close()

	assert.False(t, newTestPeer(server.URL).Healthy(context.Background()))
}

func TestPeer_Healthy_Unreachable(t *testing.T) {
	assert.False(t, newTestPeer("http://127.0.0.1:1").Healthy(context.Background()))
}

func TestPeer_FetchEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sync/order/ORD-1", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"order_number":"ORD-1","status":"COMPLETED"}`))
		},
	))
	defer server.Close()

	snapshot, err := newTestPeer(server.URL).FetchEntity(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", snapshot.OrderNumber)
	assert.Equal(t, "COMPLETED", snapshot.Status)
}

func TestPeer_FetchEntity_NotFound(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusNotFound)
		},
	))
	defer server.Close()

	_, err := newTestPeer(server.URL).FetchEntity(context.Background(), "ORD-MISSING")
	require.ErrorIs(t, err, models.ErrPeerNotFound)
	assert.Equal(t, 1, calls, "a 404 is definitive and must not be retried")
}

func TestPeer_FetchEntity_RetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"order_number":"ORD-1","status":"PENDING"}`))
		},
	))
	defer server.Close()

	snapshot, err := newTestPeer(server.URL).FetchEntity(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "PENDING", snapshot.Status)
}

func TestPeer_FetchEntity_UnavailableAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	))
	defer server.Close()

	_, err := newTestPeer(server.URL).FetchEntity(context.Background(), "ORD-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPeerUnavailable)
}

func TestPeer_FetchEntity_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
	))
	defer server.Close()

	_, err := newTestPeer(server.URL).FetchEntity(context.Background(), "ORD-1")
	assert.Error(t, err)
}
