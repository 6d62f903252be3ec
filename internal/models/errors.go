package models

import "errors"

// Error taxonomy shared across packages. Store and network failures are
// wrapped around ErrStoreUnavailable so callers can retry; everything
// else marks a specific precondition or fallback path.
var (
	// ErrNotAuthenticated means the caller's anonymous identity is not
	// ready (empty or invalid participant ID).
	ErrNotAuthenticated = errors.New("participant identity not ready")

	// ErrAlreadyQueued means the participant already holds a queue entry.
	ErrAlreadyQueued = errors.New("participant already queued")

	// ErrAlreadyInSession means the participant is in an active session.
	ErrAlreadyInSession = errors.New("participant already in an active session")

	// ErrStoreUnavailable marks a transient durable-store failure;
	// callers may retry.
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrPairingConflict means a concurrent join claimed the candidate
	// first. It never escapes the matchmaker: the losing side moves on to
	// the next candidate or enqueues.
	ErrPairingConflict = errors.New("pairing transaction conflict")

	// ErrSessionEnded means the session reached its terminal state and
	// accepts no further sends.
	ErrSessionEnded = errors.New("session already ended")

	// ErrSessionNotFound means no session row exists for the given ID.
	ErrSessionNotFound = errors.New("chat session not found")
)
