package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"orderpipe/internal/interfaces"
	"orderpipe/internal/models"
)

// SyncReconciler consumes sync events addressed to this service and pulls the
// referenced entity from the peer. Events carry only a key, so a lost or
// reordered event costs at most a missed refresh, never divergent state.
type SyncReconciler struct {
	serviceName string
	peer        interfaces.PeerClient
	logger      *zerolog.Logger
}

func NewSyncReconciler(serviceName string, peer interfaces.PeerClient, logger *zerolog.Logger) *SyncReconciler {
	return &SyncReconciler{serviceName: serviceName, peer: peer, logger: logger}
}

// HandleMessage decodes a raw sync payload and reconciles it. An undecodable
// payload is a permanent rejection.
func (s *SyncReconciler) HandleMessage(ctx context.Context, payload []byte, transportMessageID string) error {
	var event models.SyncEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Error().
			Err(err).
			Str("transport_message_id", transportMessageID).
			Msg("Failed to unmarshal sync event")
		return models.NewSyncEventValidationError("payload", err.Error())
	}

	return s.HandleSyncEvent(ctx, &event)
}

// HandleSyncEvent applies one sync event. Events targeted at another service
// are acknowledged without action.
func (s *SyncReconciler) HandleSyncEvent(ctx context.Context, event *models.SyncEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	if event.TargetService != s.serviceName {
		s.logger.Debug().
			Str("event_type", event.EventType).
			Str("target_service", event.TargetService).
			Msg("Sync event for another service, skipping")
		return nil
	}

	return s.reconcile(ctx, event)
}

// reconcile pulls the referenced entity state from the peer. A missing entity
// is normal, the peer may not have processed it yet. An unreachable peer is
// retryable so the event is redelivered.
func (s *SyncReconciler) reconcile(ctx context.Context, event *models.SyncEvent) error {
	if !s.peer.Healthy(ctx) {
		return fmt.Errorf("%w: health check failed", models.ErrPeerUnavailable)
	}

	snapshot, err := s.peer.FetchEntity(ctx, event.EntityKey)
	if err != nil {
		if errors.Is(err, models.ErrPeerNotFound) {
			s.logger.Info().
				Str("entity_key", event.EntityKey).
				Msg("Peer has no state for entity yet")
			return nil
		}
		return fmt.Errorf("fetch entity %s from peer: %w", event.EntityKey, err)
	}

	entry := s.logger.Info().
		Str("entity_key", event.EntityKey).
		Str("peer_status", snapshot.Status)
	if snapshot.UpdatedAt != nil {
		entry = entry.Time("peer_updated_at", *snapshot.UpdatedAt)
	}
	entry.Msg("Reconciled entity against peer state")
	return nil
}
