// Package session coordinates one active chat session for one
// participant: history load, live message delivery, and dual-path
// termination.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"
)

// State is the coordinator lifecycle. Ended is terminal.
type State int

const (
	StateLoading State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Callbacks receive session events. They may fire from bus goroutines
// concurrently with the owner's in-flight calls; OnPartnerLeft fires at
// most once and never on the side that initiated termination.
type Callbacks struct {
	OnMessage     func(models.Message)
	OnPartnerLeft func()
	OnStateChange func(State)
}

// Coordinator drives one session for one participant.
type Coordinator struct {
	storage       storage.Storage
	bus           bus.Bus
	sessionID     string
	participantID string
	cb            Callbacks

	mu         sync.Mutex
	state      State
	subs       []bus.Subscription
	subscribed bool
	seen       map[string]bool
	pending    []models.Message
	endedByMe  bool
}

// NewCoordinator builds a coordinator in the Loading state. Call Start
// to establish subscriptions and load history.
func NewCoordinator(s storage.Storage, b bus.Bus, sessionID, participantID string, cb Callbacks) *Coordinator {
	return &Coordinator{
		storage:       s,
		bus:           b,
		sessionID:     sessionID,
		participantID: participantID,
		cb:            cb,
		state:         StateLoading,
		seen:          make(map[string]bool),
	}
}

// SessionID returns the session this coordinator drives.
func (c *Coordinator) SessionID() string { return c.sessionID }

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start establishes the live subscriptions, loads history, merges the
// two feeds, and transitions to Active. Subscriptions go up before the
// history fetch so no message created during the load is missed; events
// arriving mid-load are buffered and de-duplicated against the fetched
// history by message ID. On failure the coordinator stays in Loading
// with subscriptions intact and Start may be called again.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.subscribe(ctx); err != nil {
		return fmt.Errorf("start session %s: %w", c.sessionID, err)
	}

	history, err := c.storage.GetSessionHistory(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("start session %s: %w", c.sessionID, err)
	}

	// The ended_at write may have raced subscription setup; the row is
	// authoritative, so read it back once the live feed is up.
	sess, err := c.storage.GetSession(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("start session %s: %w", c.sessionID, err)
	}

	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return nil
	}
	merged := append(history, c.pending...)
	c.pending = nil
	models.SortMessages(merged)
	deliver := c.claimUnseenLocked(merged)
	c.mu.Unlock()

	c.deliverAll(deliver)

	// The state stays Loading until the merged batch has fully drained;
	// live events landing mid-delivery keep buffering so they cannot
	// overtake older messages still in the batch.
	for {
		c.mu.Lock()
		if c.state != StateLoading {
			c.mu.Unlock()
			return nil
		}
		if len(c.pending) == 0 {
			c.state = StateActive
			c.mu.Unlock()
			break
		}
		batch := c.pending
		c.pending = nil
		models.SortMessages(batch)
		batch = c.claimUnseenLocked(batch)
		c.mu.Unlock()
		c.deliverAll(batch)
	}

	c.notifyState(StateActive)

	if sess.Ended() {
		// The row says the partner already ended it; treat the read the
		// same as a missed live signal.
		c.terminate(true)
	}
	return nil
}

// claimUnseenLocked filters msgs down to those not yet delivered,
// marking them seen. Caller holds c.mu.
func (c *Coordinator) claimUnseenLocked(msgs []models.Message) []models.Message {
	var out []models.Message
	for _, msg := range msgs {
		if c.seen[msg.MessageID] {
			continue
		}
		c.seen[msg.MessageID] = true
		out = append(out, msg)
	}
	return out
}

func (c *Coordinator) deliverAll(msgs []models.Message) {
	if c.cb.OnMessage == nil {
		return
	}
	for _, msg := range msgs {
		c.cb.OnMessage(msg)
	}
}

func (c *Coordinator) subscribe(ctx context.Context) error {
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	channels := []string{
		bus.SessionMessagesChannel(c.sessionID),
		bus.SessionChangesChannel(c.sessionID),
		bus.SessionControlChannel(c.sessionID),
	}
	subs := make([]bus.Subscription, 0, len(channels))
	for _, channel := range channels {
		sub, err := c.bus.Subscribe(ctx, channel, c.handleEvent)
		if err != nil {
			for _, established := range subs {
				established.Close()
			}
			return err
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subs = subs
	c.subscribed = true
	c.mu.Unlock()
	return nil
}

// handleEvent is the single entry point for all three live feeds.
func (c *Coordinator) handleEvent(ev models.Event) {
	switch e := ev.(type) {
	case models.NewMessageEvent:
		c.handleMessage(e.Message)
	case models.SessionEndedEvent:
		c.terminate(true)
	case models.SessionEndControl:
		c.terminate(true)
	}
}

func (c *Coordinator) handleMessage(msg models.Message) {
	c.mu.Lock()
	switch c.state {
	case StateEnded:
		// Stale in-flight write after termination; drop.
		c.mu.Unlock()
		return
	case StateLoading:
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	if c.seen[msg.MessageID] {
		c.mu.Unlock()
		return
	}
	c.seen[msg.MessageID] = true
	c.mu.Unlock()

	if c.cb.OnMessage != nil {
		c.cb.OnMessage(msg)
	}
}

// SendMessage appends one message. Empty or whitespace-only content is a
// no-op with no store call. A send failure is reported to the caller and
// leaves session state untouched.
func (c *Coordinator) SendMessage(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return models.ErrSessionEnded
	}
	c.mu.Unlock()

	msg := &models.Message{
		SessionID: c.sessionID,
		SenderID:  c.participantID,
		Content:   trimmed,
	}
	return c.storage.SaveMessage(ctx, msg)
}

// End terminates the session through both paths: a best-effort broadcast
// for sub-second notice to a connected partner, then the unconditional
// durable ended_at write. Only the durable failure is surfaced. Calling
// End again after success is a no-op.
func (c *Coordinator) End(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	// Local intent must be marked before either signal can echo back,
	// so the generic termination handler knows to suppress partner-left.
	c.endedByMe = true
	c.mu.Unlock()

	if err := c.storage.PublishSessionControl(ctx, c.sessionID); err != nil {
		log.Printf("session %s: end broadcast failed: %v", c.sessionID, err)
	}

	if _, err := c.storage.EndSession(ctx, c.sessionID); err != nil {
		// The session is still live; a partner end arriving later must
		// not be mistaken for our own echo.
		c.mu.Lock()
		if c.state != StateEnded {
			c.endedByMe = false
		}
		c.mu.Unlock()
		return fmt.Errorf("end session %s: %w", c.sessionID, err)
	}

	c.terminate(false)
	return nil
}

// terminate performs the single transition to Ended. partnerSignal marks
// transitions caused by an observed signal rather than a local End call;
// the partner-left callback fires only when the signal was not our own
// echo.
func (c *Coordinator) terminate(partnerSignal bool) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.state = StateEnded
	firePartnerLeft := partnerSignal && !c.endedByMe
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.notifyState(StateEnded)
	if firePartnerLeft && c.cb.OnPartnerLeft != nil {
		c.cb.OnPartnerLeft()
	}
}

// Close releases all subscriptions without touching session state. It is
// idempotent, takes effect locally at once, and must run on every exit
// path of the owner.
func (c *Coordinator) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.subscribed = false
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (c *Coordinator) notifyState(s State) {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(s)
	}
}
