package chathub

import "driftchat/backend/internal/models"

// Inbound frame types (client → server).
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameEnd     = "end"
)

// Outbound frame types (server → client).
const (
	FrameQueued      = "queued"
	FrameMatchFound  = "match_found"
	FrameNewMessage  = "message"
	FramePartnerLeft = "partner_left"
	FrameError       = "error"
)

// ClientFrame is one decoded WebSocket message from a participant.
type ClientFrame struct {
	Type      string   `json:"type"`
	Topic     string   `json:"topic,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Content   string   `json:"content,omitempty"`
}

// ServerFrame is one WebSocket message sent to a participant.
type ServerFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

func errorFrame(msg string, retryable bool) ServerFrame {
	return ServerFrame{Type: FrameError, Error: msg, Retryable: retryable}
}
