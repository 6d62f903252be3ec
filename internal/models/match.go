package models

// MatchResult is the transient outcome of one matchmaking attempt.
// It is never persisted.
type MatchResult struct {
	// Matched reports whether a compatible partner was found.
	Matched bool `json:"matched"`
	// SessionID is set only when Matched is true.
	SessionID string `json:"session_id,omitempty"`
}
