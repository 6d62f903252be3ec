package models_test

import (
	"testing"
	"time"

	"driftchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSessionBeforeCreate_GeneratesUUID(t *testing.T) {
	session := &models.ChatSession{
		ParticipantAID: "a",
		ParticipantBID: "b",
	}
	require.NoError(t, session.BeforeCreate(nil))
	assert.NotEmpty(t, session.SessionID)

	_, err := uuid.Parse(session.SessionID)
	assert.NoError(t, err, "SessionID must be a valid UUID")
}

func TestChatSessionBeforeCreate_PreservesExistingID(t *testing.T) {
	existing := uuid.New().String()
	session := &models.ChatSession{SessionID: existing}
	require.NoError(t, session.BeforeCreate(nil))
	assert.Equal(t, existing, session.SessionID)
}

func TestChatSessionPartnerOf(t *testing.T) {
	session := &models.ChatSession{ParticipantAID: "alice", ParticipantBID: "bob"}

	assert.Equal(t, "bob", session.PartnerOf("alice"))
	assert.Equal(t, "alice", session.PartnerOf("bob"))
	assert.Empty(t, session.PartnerOf("stranger"))
}

func TestChatSessionEnded(t *testing.T) {
	session := &models.ChatSession{}
	assert.False(t, session.Ended())

	now := time.Now()
	session.EndedAt = &now
	assert.True(t, session.Ended())
}

func TestPreferredLanguage(t *testing.T) {
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"single language", []string{"en"}, "en"},
		{"ordered list picks first", []string{"fr", "en"}, "fr"},
		{"translator sentinel only", []string{"any"}, "any"},
		{"sentinel before display language", []string{"any", "ko"}, "ko"},
		{"empty list", nil, "any"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.PreferredLanguage(tt.langs))
		})
	}
}

func TestQueueEntryPreferredLanguage(t *testing.T) {
	entry := models.QueueEntry{LanguagePreference: pq.StringArray{"any", "de"}}
	assert.Equal(t, "de", entry.PreferredLanguage())
}

func TestSortMessages_OrdersByTimestampThenID(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{MessageID: "b", CreatedAt: base.Add(time.Second)},
		{MessageID: "z", CreatedAt: base},
		{MessageID: "a", CreatedAt: base.Add(time.Second)},
	}

	models.SortMessages(msgs)

	assert.Equal(t, []string{"z", "a", "b"}, []string{msgs[0].MessageID, msgs[1].MessageID, msgs[2].MessageID})
}

func TestMessageLess_TieBreaksOnID(t *testing.T) {
	ts := time.Now()
	first := models.Message{MessageID: "aaa", CreatedAt: ts}
	second := models.Message{MessageID: "bbb", CreatedAt: ts}

	assert.True(t, first.Less(second))
	assert.False(t, second.Less(first))
}

func TestEventRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ev   models.Event
	}{
		{"match found", models.MatchFoundEvent{SessionID: "s-1"}},
		{"session ended", models.SessionEndedEvent{SessionID: "s-2"}},
		{"end control", models.SessionEndControl{SessionID: "s-3"}},
		{"new message", models.NewMessageEvent{Message: models.Message{
			MessageID: "m-1",
			SessionID: "s-4",
			SenderID:  "alice",
			Content:   "hello",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := models.EncodeEvent(tt.ev)
			require.NoError(t, err)

			decoded, err := models.DecodeEvent(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.ev, decoded)
		})
	}
}

func TestDecodeEvent_RejectsBadPayloads(t *testing.T) {
	_, err := models.DecodeEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = models.DecodeEvent([]byte(`{"type":"mystery"}`))
	assert.Error(t, err)
}
