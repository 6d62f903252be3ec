// Package matchmaker owns the compatibility algorithm and the atomic
// enqueue-or-pair transition over the durable queue.
package matchmaker

import (
	"context"
	"errors"
	"fmt"

	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"

	"github.com/lib/pq"
)

// DefaultScanLimit caps the candidate window per join attempt. A small
// window bounds latency; fairness beyond oldest-first scan order is not
// a goal.
const DefaultScanLimit = 10

// Service pairs participants by (topic, mode, language compatibility).
type Service struct {
	Storage   storage.Storage
	Bus       bus.Bus
	ScanLimit int
}

// NewService creates a matchmaker with the default scan window.
func NewService(s storage.Storage, b bus.Bus) *Service {
	return &Service{Storage: s, Bus: b, ScanLimit: DefaultScanLimit}
}

// JoinRequest is one participant's matchmaking intent.
type JoinRequest struct {
	ParticipantID string   `json:"participant_id"`
	Topic         string   `json:"topic"`
	Languages     []string `json:"languages"`
	Mode          string   `json:"mode"`
}

// Join either pairs the caller with the first compatible waiting
// participant or enqueues the caller. On an unmatched result the caller
// must subscribe to match notifications unconditionally; a later joiner
// can claim the fresh entry at any moment.
func (m *Service) Join(ctx context.Context, req JoinRequest) (models.MatchResult, error) {
	if req.ParticipantID == "" {
		return models.MatchResult{}, models.ErrNotAuthenticated
	}

	candidates, err := m.Storage.ListCandidates(ctx, req.Topic, req.Mode, req.ParticipantID, m.ScanLimit)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("join: %w", err)
	}

	for _, candidate := range candidates {
		if !Compatible(req.Languages, candidate.LanguagePreference) {
			continue
		}

		session := &models.ChatSession{
			ParticipantAID: candidate.ParticipantID,
			ParticipantBID: req.ParticipantID,
			Topic:          req.Topic,
			Mode:           req.Mode,
			LanguageA:      candidate.PreferredLanguage(),
			LanguageB:      models.PreferredLanguage(req.Languages),
		}
		err := m.Storage.CreateSessionFromQueue(ctx, session, candidate.ParticipantID, req.ParticipantID)
		if errors.Is(err, models.ErrPairingConflict) {
			// A concurrent join claimed this candidate first; try the next.
			continue
		}
		if err != nil {
			return models.MatchResult{}, fmt.Errorf("join: %w", err)
		}
		return models.MatchResult{Matched: true, SessionID: session.SessionID}, nil
	}

	entry := &models.QueueEntry{
		ParticipantID:      req.ParticipantID,
		Topic:              req.Topic,
		LanguagePreference: pq.StringArray(req.Languages),
		Mode:               req.Mode,
	}
	if err := m.Storage.EnqueueParticipant(ctx, entry); err != nil {
		return models.MatchResult{}, fmt.Errorf("join: %w", err)
	}
	return models.MatchResult{Matched: false}, nil
}

// Leave removes the participant's queue entry. It never errors on a
// missing entry: leaving after matching through the notification path is
// a routine no-op.
func (m *Service) Leave(ctx context.Context, participantID string) error {
	return m.Storage.DequeueParticipant(ctx, participantID)
}

// SubscribeToMatch delivers session IDs of sessions created with the
// participant as the waiting party. Delivery is at-least-once; onMatched
// must tolerate duplicates. The returned release func is idempotent and
// stops delivery locally without waiting on the bus.
func (m *Service) SubscribeToMatch(ctx context.Context, participantID string, onMatched func(sessionID string)) (func(), error) {
	sub, err := m.Bus.Subscribe(ctx, bus.MatchChannel(participantID), func(ev models.Event) {
		if found, ok := ev.(models.MatchFoundEvent); ok {
			onMatched(found.SessionID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to match: %w", err)
	}
	return sub.Close, nil
}
