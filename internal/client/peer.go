// Package client implements the HTTP client for the peer service's
// synchronous lookup API
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"orderpipe/internal/config"
	"orderpipe/internal/models"
)

// A Peer calls the other service's /sync endpoints. Transient failures are
// retried with backoff behind a circuit breaker; a 404 is surfaced as
// ErrPeerNotFound since the reconciler treats it as a normal outcome.
type Peer struct {
	httpClient  *http.Client
	baseURL     string
	entityPath  string
	maxAttempts int
	breaker     *gobreaker.CircuitBreaker
	logger      *zerolog.Logger
}

// NewPeer creates a client for the peer at cfg.Peer.BaseURL. entityPath is
// the lookup route prefix, e.g. "/sync/order" or "/sync/processed-order".
func NewPeer(cfg *config.Config, entityPath string, logger *zerolog.Logger) *Peer {
	breaker := gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        "peer-client",
			MaxRequests: uint32(cfg.CircuitBreaker.HalfOpenMaxCalls),
			Interval:    cfg.CircuitBreaker.Timeout,
			Timeout:     cfg.CircuitBreaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreaker.MaxFailures)
			},
		},
	)

	return &Peer{
		httpClient:  &http.Client{Timeout: cfg.Peer.RequestTimeout},
		baseURL:     cfg.Peer.BaseURL,
		entityPath:  entityPath,
		maxAttempts: cfg.Peer.MaxAttempts,
		breaker:     breaker,
		logger:      logger,
	}
}

// Healthy reports whether the peer answers its health endpoint
func (p *Peer) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/sync/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Peer health check failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// FetchEntity pulls the peer's authoritative record for the entity key.
// Returns ErrPeerNotFound for a 404; any other failure is wrapped as
// retryable so the transport redelivers the triggering event.
func (p *Peer) FetchEntity(ctx context.Context, entityKey string) (*models.PeerSnapshot, error) {
	url := fmt.Sprintf("%s%s/%s", p.baseURL, p.entityPath, entityKey)

	result, err := p.breaker.Execute(
		func() (any, error) {
			var snapshot *models.PeerSnapshot
			retryErr := retry.Do(
				func() error {
					var fetchErr error
					snapshot, fetchErr = p.fetch(ctx, url)
					return fetchErr
				},
				retry.Attempts(uint(p.maxAttempts)),
				retry.Delay(200*time.Millisecond),
				retry.DelayType(retry.BackOffDelay),
				retry.RetryIf(
					func(err error) bool {
						// A 404 is a definitive answer, not a transient failure
						return !errors404(err)
					},
				),
				retry.Context(ctx),
				retry.LastErrorOnly(true),
			)
			return snapshot, retryErr
		},
	)
	if err != nil {
		if errors404(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPeerUnavailable, err)
	}

	return result.(*models.PeerSnapshot), nil
}

// fetch performs one lookup attempt
func (p *Peer) fetch(ctx context.Context, url string) (*models.PeerSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, models.ErrPeerNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("peer answered status %d for %s", resp.StatusCode, url)
	}

	var snapshot models.PeerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode peer response: %w", err)
	}

	return &snapshot, nil
}

func errors404(err error) bool {
	return errors.Is(err, models.ErrPeerNotFound)
}
