package chathub_test

import (
	"context"
	"sync"

	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/models"
)

// memBus is an in-process stand-in for the Redis bus, delivering events
// synchronously to subscribed handlers.
type memBus struct {
	mu   sync.Mutex
	subs map[string][]*memSub
}

func newMemBus() *memBus {
	return &memBus{subs: make(map[string][]*memSub)}
}

func (b *memBus) Subscribe(ctx context.Context, channel string, h bus.Handler) (bus.Subscription, error) {
	sub := &memSub{handler: h}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()
	return sub, nil
}

func (b *memBus) Publish(channel string, ev models.Event) {
	b.mu.Lock()
	subs := append([]*memSub(nil), b.subs[channel]...)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(ev)
	}
}

type memSub struct {
	handler bus.Handler
	mu      sync.Mutex
	closed  bool
}

func (s *memSub) deliver(ev models.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.handler(ev)
	}
}

func (s *memSub) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
