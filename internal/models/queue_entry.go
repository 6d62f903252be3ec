package models

import (
	"time"

	"github.com/lib/pq" // pq.StringArray for the language preference column
)

// Chat modes a participant can queue for.
const (
	ModeText  = "text"
	ModeVoice = "voice"
	ModeVideo = "video"
)

// LanguageAny is the sentinel preference meaning "match anyone"; it is
// also how translator mode is encoded (one display language plus the
// sentinel semantics of matching across languages).
const LanguageAny = "any"

// QueueEntry represents one participant waiting to be paired.
// A participant can hold at most one entry; the primary key enforces it.
type QueueEntry struct {
	// ParticipantID is the anonymous ID of the waiting participant.
	ParticipantID string `gorm:"primaryKey;type:text" json:"participant_id"`
	// Topic the participant wants to talk about.
	Topic string `gorm:"type:text;not null;index:idx_queue_topic_mode" json:"topic"`
	// LanguagePreference is the ordered list of acceptable language tags,
	// or the single "any" sentinel.
	LanguagePreference pq.StringArray `gorm:"type:text[]" json:"language_preference"`
	// Mode is one of ModeText, ModeVoice, ModeVideo.
	Mode string `gorm:"type:text;not null;index:idx_queue_topic_mode" json:"mode"`
	// EnqueuedAt is when the participant joined the queue.
	EnqueuedAt time.Time `gorm:"autoCreateTime" json:"enqueued_at"`
}

func (QueueEntry) TableName() string {
	return "match_queue"
}

// PreferredLanguage returns the language recorded on the session row for
// this participant: the first non-sentinel tag, or "any".
func (q QueueEntry) PreferredLanguage() string {
	return PreferredLanguage(q.LanguagePreference)
}

// PreferredLanguage picks the first non-sentinel tag of an ordered
// preference list, falling back to the "any" sentinel.
func PreferredLanguage(langs []string) string {
	for _, lang := range langs {
		if lang != LanguageAny {
			return lang
		}
	}
	return LanguageAny
}
