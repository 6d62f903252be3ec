package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one chat message inside a session. Rows are append-only:
// never updated, never deleted.
type Message struct {
	// MessageID is the unique identifier of the message (UUID).
	MessageID string `gorm:"primaryKey;type:uuid" json:"message_id"`
	// SessionID is the session the message belongs to.
	SessionID string `gorm:"type:uuid;not null;index" json:"session_id"`
	// SenderID is the anonymous ID of the author.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// Content is the message text.
	Content string `gorm:"type:text;not null" json:"content"`
	// CreatedAt is the persisted timestamp; the total order of a session's
	// messages is (CreatedAt, MessageID).
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate generates the message UUID if one was not supplied.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.MessageID == "" {
		m.MessageID = uuid.New().String()
	}
	return
}

// Less reports whether m precedes other in the persisted order,
// breaking timestamp ties by MessageID.
func (m Message) Less(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.MessageID < other.MessageID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SortMessages orders msgs by (CreatedAt, MessageID) in place.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Less(msgs[j]) })
}
