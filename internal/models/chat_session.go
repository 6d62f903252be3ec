package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatSession represents a 1-on-1 conversation between two anonymous
// participants. Participant A is the one who was waiting in the queue;
// participant B is the caller whose join completed the pair.
type ChatSession struct {
	// SessionID is the unique identifier of the session (UUID).
	SessionID string `gorm:"primaryKey;type:uuid" json:"session_id"`
	// ParticipantAID is the anonymous ID of the queued side of the pair.
	ParticipantAID string `gorm:"type:text;not null;index" json:"participant_a_id"`
	// ParticipantBID is the anonymous ID of the joining side of the pair.
	ParticipantBID string `gorm:"type:text;not null;index" json:"participant_b_id"`
	// Topic both participants queued for.
	Topic string `gorm:"type:text;not null" json:"topic"`
	// Mode is the chat mode both participants queued for.
	Mode string `gorm:"type:text;not null" json:"mode"`
	// LanguageA is participant A's chosen language ("any" in translator mode).
	LanguageA string `gorm:"type:text" json:"language_a"`
	// LanguageB is participant B's chosen language.
	LanguageB string `gorm:"type:text" json:"language_b"`
	// CreatedAt is when the pair was formed.
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	// EndedAt is nil while the session is active. It is written exactly
	// once, by whichever participant terminates first.
	EndedAt *time.Time `gorm:"index" json:"ended_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// BeforeCreate generates the session UUID if one was not supplied.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.SessionID == "" {
		s.SessionID = uuid.New().String()
	}
	return
}

// Ended reports whether the session has been terminated.
func (s *ChatSession) Ended() bool {
	return s.EndedAt != nil
}

// PartnerOf returns the other participant's ID, or "" if the given
// participant is not part of the session.
func (s *ChatSession) PartnerOf(participantID string) string {
	switch participantID {
	case s.ParticipantAID:
		return s.ParticipantBID
	case s.ParticipantBID:
		return s.ParticipantAID
	}
	return ""
}
