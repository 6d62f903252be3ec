// Package bus is the subscribe side of the notification bus. It delivers
// low-latency, at-least-once notifications over Redis pub/sub; it is
// never authoritative, and consumers reconcile against the durable store.
package bus

import (
	"context"
	"log"
	"sync/atomic"

	"driftchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Channel naming. Row-change notifications are scoped the way the store
// filters rows: sessions where the waiting participant is a party,
// messages of one session, and the session row itself. The control
// channel carries ad-hoc broadcasts.
func MatchChannel(participantID string) string       { return "match:" + participantID }
func SessionMessagesChannel(sessionID string) string { return "session:" + sessionID + ":messages" }
func SessionChangesChannel(sessionID string) string  { return "session:" + sessionID + ":changes" }
func SessionControlChannel(sessionID string) string  { return "session:" + sessionID + ":control" }

// Handler consumes decoded events. Handlers may be invoked concurrently
// with the subscriber's other in-flight operations.
type Handler func(models.Event)

// Subscription is an owned handle for one channel subscription. Close is
// idempotent and takes effect locally without a network round trip.
type Subscription interface {
	Close()
}

// Bus hands out subscriptions on named channels.
type Bus interface {
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
}

// RedisBus implements Bus on Redis pub/sub. The underlying client
// resubscribes automatically after a dropped connection, so a lost
// subscription heals without surfacing to the consumer.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

// Subscribe returns once the server has confirmed the subscription, so a
// write issued afterwards is observable through it.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, channel: channel}
	go sub.pump(h)
	return sub, nil
}

type redisSubscription struct {
	ps      *redis.PubSub
	channel string
	closed  atomic.Bool
}

func (s *redisSubscription) pump(h Handler) {
	for msg := range s.ps.Channel() {
		if s.closed.Load() {
			return
		}
		ev, err := models.DecodeEvent([]byte(msg.Payload))
		if err != nil {
			log.Printf("bus: dropping payload on %s: %v", s.channel, err)
			continue
		}
		h(ev)
	}
}

// Close stops handler invocation immediately; the Redis unsubscribe
// happens in the background and its outcome does not matter locally.
func (s *redisSubscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	go func() {
		if err := s.ps.Close(); err != nil {
			log.Printf("bus: closing subscription on %s: %v", s.channel, err)
		}
	}()
}
