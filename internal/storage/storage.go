package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the durable-store boundary used by the matchmaker and the
// session coordinator. The concrete Service also publishes row-change
// notifications after each committed write, so transient delivery always
// trails the authoritative row.
type Storage interface {
	EnqueueParticipant(ctx context.Context, entry *models.QueueEntry) error
	DequeueParticipant(ctx context.Context, participantID string) error
	ListCandidates(ctx context.Context, topic, mode, excludeID string, limit int) ([]models.QueueEntry, error)
	CreateSessionFromQueue(ctx context.Context, session *models.ChatSession, candidateID, callerID string) error

	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	FindSessionForParticipant(ctx context.Context, participantID string) (*models.ChatSession, error)
	EndSession(ctx context.Context, sessionID string) (bool, error)
	PublishSessionControl(ctx context.Context, sessionID string) error

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetSessionHistory(ctx context.Context, sessionID string) ([]models.Message, error)
}

// Service implements Storage on PostgreSQL (GORM) with Redis pub/sub as
// the notification fan-out.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewService constructs the storage service.
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// EnqueueParticipant inserts the caller's queue entry. A second entry for
// the same participant violates the primary key and maps to
// ErrAlreadyQueued.
func (s *Service) EnqueueParticipant(ctx context.Context, entry *models.QueueEntry) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrAlreadyQueued
		}
		return fmt.Errorf("enqueue participant: %w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

// DequeueParticipant removes the participant's queue entry if present.
// Removing a missing entry is a silent success.
func (s *Service) DequeueParticipant(ctx context.Context, participantID string) error {
	err := s.DB.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Delete(&models.QueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("dequeue participant: %w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

// ListCandidates returns up to limit waiting entries with the same topic
// and mode, oldest first, excluding the caller. The cap bounds scan
// latency; it is not a correctness requirement.
func (s *Service) ListCandidates(ctx context.Context, topic, mode, excludeID string, limit int) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.DB.WithContext(ctx).
		Where("topic = ? AND mode = ? AND participant_id <> ?", topic, mode, excludeID).
		Order("enqueued_at asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w: %w", models.ErrStoreUnavailable, err)
	}
	return entries, nil
}

// CreateSessionFromQueue atomically claims the candidate's queue entry,
// removes the caller's own entry if one survived from an earlier join,
// and creates the session row. If a concurrent join already claimed the
// candidate the whole transaction rolls back with ErrPairingConflict and
// no session exists.
func (s *Service) CreateSessionFromQueue(ctx context.Context, session *models.ChatSession, candidateID, callerID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed := tx.Where("participant_id = ?", candidateID).Delete(&models.QueueEntry{})
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			return models.ErrPairingConflict
		}
		if err := tx.Where("participant_id = ?", callerID).Delete(&models.QueueEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrPairingConflict) {
			return models.ErrPairingConflict
		}
		return fmt.Errorf("pairing transaction: %w: %w", models.ErrStoreUnavailable, err)
	}

	s.publish(ctx, bus.MatchChannel(session.ParticipantAID), models.MatchFoundEvent{SessionID: session.SessionID})
	return nil
}

// GetSession loads one session row.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w: %w", models.ErrStoreUnavailable, err)
	}
	return &session, nil
}

// FindSessionForParticipant returns the participant's newest active
// session, or ErrSessionNotFound. The bus cannot replay a match
// published before the subscriber came up, so queued participants check
// the store once after subscribing.
func (s *Service) FindSessionForParticipant(ctx context.Context, participantID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("(participant_a_id = ? OR participant_b_id = ?) AND ended_at IS NULL", participantID, participantID).
		Order("created_at desc").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session for participant: %w: %w", models.ErrStoreUnavailable, err)
	}
	return &session, nil
}

// EndSession sets ended_at once; the condition keeps the first writer's
// timestamp under concurrent termination. The returned bool reports
// whether this call was that first writer.
func (s *Service) EndSession(ctx context.Context, sessionID string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("session_id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", gorm.Expr("NOW()"))
	if res.Error != nil {
		return false, fmt.Errorf("end session: %w: %w", models.ErrStoreUnavailable, res.Error)
	}
	first := res.RowsAffected > 0
	if first {
		s.publish(ctx, bus.SessionChangesChannel(sessionID), models.SessionEndedEvent{SessionID: sessionID})
	}
	return first, nil
}

// PublishSessionControl broadcasts the {type:"end"} control payload on
// the session channel. Best-effort by contract; the caller is expected
// to follow up with the durable EndSession write.
func (s *Service) PublishSessionControl(ctx context.Context, sessionID string) error {
	payload, err := models.EncodeEvent(models.SessionEndControl{SessionID: sessionID})
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(ctx, bus.SessionControlChannel(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish session control: %w", err)
	}
	return nil
}

// SaveMessage appends one message row and notifies session subscribers.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("save message: %w: %w", models.ErrStoreUnavailable, err)
	}
	s.publish(ctx, bus.SessionMessagesChannel(msg.SessionID), models.NewMessageEvent{Message: *msg})
	return nil
}

// GetSessionHistory returns the session's messages ascending by
// (created_at, message_id).
func (s *Service) GetSessionHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	var history []models.Message
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc, message_id asc").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("get session history: %w: %w", models.ErrStoreUnavailable, err)
	}
	return history, nil
}

// publish sends a row-change notification after a committed write. The
// row is already durable, so delivery failures are logged and dropped;
// consumers reconcile against the store.
func (s *Service) publish(ctx context.Context, channel string, ev models.Event) {
	payload, err := models.EncodeEvent(ev)
	if err != nil {
		log.Printf("storage: encode event for %s: %v", channel, err)
		return
	}
	if err := s.Redis.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("storage: publish to %s: %v", channel, err)
	}
}
