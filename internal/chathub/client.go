package chathub

// Client is the transport side of one connected participant. It
// abstracts the underlying connection so the hub can manage transports
// uniformly (the production transport is WebSocket).
type Client interface {
	// ParticipantID returns the anonymous identifier bound to the
	// connection at upgrade time.
	ParticipantID() string
	// SendFrame queues a frame for delivery. It never blocks; a client
	// too slow to drain its queue is disconnected.
	SendFrame(frame ServerFrame)
	// Close shuts the connection down. Idempotent.
	Close()
}
