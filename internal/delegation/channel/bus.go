// Package channel provides broadcast transports for the delegation protocol.
package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"sheetport/internal/delegation"
	"sheetport/pkg/platform/sentinel"
)

const defaultBuffer = 256

// Bus is an in-process broadcast channel. Publish never blocks: a
// subscriber whose buffer is full misses the message and Dropped counts it.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*busSubscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Int64
}

type BusOption func(*Bus)

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[*busSubscription]struct{}),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers msg to every current subscription.
func (b *Bus) Publish(ctx context.Context, msg delegation.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return sentinel.ErrClosed
	}
	for s := range b.subs {
		select {
		case s.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) (delegation.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, sentinel.ErrClosed
	}
	s := &busSubscription{bus: b, ch: make(chan delegation.Message, b.buffer)}
	b.subs[s] = struct{}{}
	return s, nil
}

// Subscribers reports how many subscriptions are open.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped reports messages lost to full subscriber buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	return nil
}

type busSubscription struct {
	bus *Bus
	ch  chan delegation.Message
}

func (s *busSubscription) Messages() <-chan delegation.Message {
	return s.ch
}

func (s *busSubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
	return nil
}
