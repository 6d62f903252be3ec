// Package chathub connects transports to the matchmaker and to session
// coordinators. One Conn owns everything acquired on behalf of a
// connection (match subscription, active coordinator) and releases it on
// every exit path.
package chathub

import (
	"context"
	"errors"
	"log"
	"sync"

	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/matchmaker"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/session"
	"driftchat/backend/internal/storage"
)

// Hub is the registry of connected participants.
type Hub struct {
	Matchmaker *matchmaker.Service
	Storage    storage.Storage
	Bus        bus.Bus

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewHub creates an empty hub.
func NewHub(m *matchmaker.Service, s storage.Storage, b bus.Bus) *Hub {
	return &Hub{
		Matchmaker: m,
		Storage:    s,
		Bus:        b,
		conns:      make(map[string]*Conn),
	}
}

// Register binds a client to the hub. A second connection for the same
// participant replaces the first, which is torn down.
func (h *Hub) Register(client Client) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		hub:    h,
		client: client,
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	prev := h.conns[client.ParticipantID()]
	h.conns[client.ParticipantID()] = conn
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return conn
}

// Unregister tears the connection down and removes it from the registry
// unless a newer connection already replaced it.
func (h *Hub) Unregister(conn *Conn) {
	h.mu.Lock()
	if h.conns[conn.client.ParticipantID()] == conn {
		delete(h.conns, conn.client.ParticipantID())
	}
	h.mu.Unlock()

	conn.Close()
}

// ConnCount reports the number of connected participants.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Conn is the per-connection state machine: at most one of {waiting for
// a match, in a session} at a time, mirroring the store invariant.
type Conn struct {
	hub    *Hub
	client Client
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	cancelMatch func()
	coord       *session.Coordinator
	closed      bool
}

// HandleFrame processes one inbound frame. Frames from one client arrive
// sequentially (the read pump calls this inline), but bus callbacks may
// mutate the Conn concurrently, hence the lock inside each handler.
func (c *Conn) HandleFrame(frame ClientFrame) {
	switch frame.Type {
	case FrameJoin:
		c.handleJoin(frame)
	case FrameLeave:
		c.handleLeave()
	case FrameMessage:
		c.handleMessage(frame.Content)
	case FrameEnd:
		c.handleEnd()
	default:
		c.client.SendFrame(errorFrame("unknown frame type "+frame.Type, false))
	}
}

func (c *Conn) handleJoin(frame ClientFrame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.coord != nil {
		c.mu.Unlock()
		c.client.SendFrame(errorFrame(models.ErrAlreadyInSession.Error(), false))
		return
	}
	if c.cancelMatch != nil {
		c.mu.Unlock()
		c.client.SendFrame(errorFrame(models.ErrAlreadyQueued.Error(), false))
		return
	}
	c.mu.Unlock()

	result, err := c.hub.Matchmaker.Join(c.ctx, matchmaker.JoinRequest{
		ParticipantID: c.client.ParticipantID(),
		Topic:         frame.Topic,
		Languages:     frame.Languages,
		Mode:          frame.Mode,
	})
	if err != nil {
		retryable := errors.Is(err, models.ErrStoreUnavailable)
		c.client.SendFrame(errorFrame(err.Error(), retryable))
		return
	}

	if result.Matched {
		c.attachSession(result.SessionID)
		return
	}

	// Subscribe before reporting "queued": a joiner arriving between the
	// enqueue and this point must still reach us.
	release, err := c.hub.Matchmaker.SubscribeToMatch(c.ctx, c.client.ParticipantID(), c.onMatched)
	if err != nil {
		// Without the subscription the entry is unreachable; withdraw it.
		if leaveErr := c.hub.Matchmaker.Leave(c.ctx, c.client.ParticipantID()); leaveErr != nil {
			log.Printf("conn %s: withdraw after subscribe failure: %v", c.client.ParticipantID(), leaveErr)
		}
		c.client.SendFrame(errorFrame("match notifications unavailable", true))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		release()
		return
	}
	c.cancelMatch = release
	c.mu.Unlock()

	// A pairing committed between the enqueue and the subscription was
	// published to nobody; the store is the only place it still exists.
	sess, err := c.hub.Storage.FindSessionForParticipant(c.ctx, c.client.ParticipantID())
	if err == nil {
		c.onMatched(sess.SessionID)
		return
	}
	if !errors.Is(err, models.ErrSessionNotFound) {
		log.Printf("conn %s: reconcile after subscribe: %v", c.client.ParticipantID(), err)
	}

	c.client.SendFrame(ServerFrame{Type: FrameQueued})
}

// onMatched fires from the bus with at-least-once semantics; attaching
// is idempotent because the coordinator check runs under the lock.
func (c *Conn) onMatched(sessionID string) {
	c.mu.Lock()
	if c.closed || c.coord != nil {
		c.mu.Unlock()
		return
	}
	release := c.cancelMatch
	c.cancelMatch = nil
	c.mu.Unlock()

	if release != nil {
		release()
	}
	c.attachSession(sessionID)
}

func (c *Conn) attachSession(sessionID string) {
	coord := session.NewCoordinator(c.hub.Storage, c.hub.Bus, sessionID, c.client.ParticipantID(), session.Callbacks{
		OnMessage: func(msg models.Message) {
			m := msg
			c.client.SendFrame(ServerFrame{Type: FrameNewMessage, SessionID: sessionID, Message: &m})
		},
		OnPartnerLeft: func() {
			c.client.SendFrame(ServerFrame{Type: FramePartnerLeft, SessionID: sessionID})
			c.detachSession()
		},
	})

	c.mu.Lock()
	if c.closed || c.coord != nil {
		c.mu.Unlock()
		coord.Close()
		return
	}
	c.coord = coord
	c.mu.Unlock()

	if err := coord.Start(c.ctx); err != nil {
		log.Printf("conn %s: session %s start: %v", c.client.ParticipantID(), sessionID, err)
		c.detachSession()
		c.client.SendFrame(errorFrame("failed to open session, rejoin to retry", true))
		return
	}

	c.client.SendFrame(ServerFrame{Type: FrameMatchFound, SessionID: sessionID})
}

func (c *Conn) detachSession() {
	c.mu.Lock()
	coord := c.coord
	c.coord = nil
	c.mu.Unlock()

	if coord != nil {
		coord.Close()
	}
}

func (c *Conn) handleMessage(content string) {
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()

	if coord == nil {
		c.client.SendFrame(errorFrame("no active session", false))
		return
	}
	if err := coord.SendMessage(c.ctx, content); err != nil {
		retryable := errors.Is(err, models.ErrStoreUnavailable)
		c.client.SendFrame(errorFrame(err.Error(), retryable))
	}
}

func (c *Conn) handleEnd() {
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()

	if coord == nil {
		return
	}
	if err := coord.End(c.ctx); err != nil {
		// The durable write is the only guaranteed path; surface it.
		c.client.SendFrame(errorFrame(err.Error(), true))
		return
	}
	c.detachSession()
}

func (c *Conn) handleLeave() {
	c.mu.Lock()
	release := c.cancelMatch
	c.cancelMatch = nil
	c.mu.Unlock()

	if release != nil {
		release()
	}
	if err := c.hub.Matchmaker.Leave(c.ctx, c.client.ParticipantID()); err != nil {
		log.Printf("conn %s: leave queue: %v", c.client.ParticipantID(), err)
	}
}

// Close releases the match subscription, the coordinator, the queue
// entry, and the transport. Safe to call more than once and from any
// goroutine.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	release := c.cancelMatch
	c.cancelMatch = nil
	coord := c.coord
	c.coord = nil
	c.mu.Unlock()

	if release != nil {
		release()
	}
	if coord != nil {
		coord.Close()
	}
	if err := c.hub.Matchmaker.Leave(context.Background(), c.client.ParticipantID()); err != nil {
		log.Printf("conn %s: leave queue on close: %v", c.client.ParticipantID(), err)
	}
	c.cancel()
	c.client.Close()
}
