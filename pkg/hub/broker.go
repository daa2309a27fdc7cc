package hub

import (
	"context"
	"sync"
)

// Broker is the cross-process fan-out primitive. A single-process deployment
// uses the in-process implementation; multi-process deployments use the Redis
// implementation so deltas published on one hub instance reach rooms on the
// others.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe registers fn for messages on channel and returns an
	// unsubscribe function. fn runs on the broker's delivery goroutine.
	Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error)
	Close() error
}

// MemoryBroker is the in-process Broker. Delivery is synchronous and ordered
// per publisher.
type MemoryBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(data []byte)
}

var _ Broker = (*MemoryBroker)(nil)

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]func(data []byte))}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte) error {
	b.mu.Lock()
	fns := make([]func(data []byte), 0, len(b.subs[channel]))
	for _, fn := range b.subs[channel] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]func(data []byte))
	}
	id := b.nextID
	b.nextID++
	b.subs[channel][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]func(data []byte))
	return nil
}
