package realtime

import (
	"context"
	"sync"

	"github.com/SheaGuev/collabsync/pkg/transport"
)

// fakeTransport records emitted messages and lets tests inject inbound ones,
// so channel behavior is exercised deterministically without a hub.
type fakeTransport struct {
	mu            sync.Mutex
	emitErr       error
	emitted       []*transport.Message
	handlers      map[string][]transport.Handler
	stateHandlers []transport.StateHandler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string][]transport.Handler)}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Close(ctx context.Context) error   { return nil }
func (f *fakeTransport) IsClosed() bool                    { return false }

func (f *fakeTransport) Emit(ctx context.Context, msg *transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, msg)
	return nil
}

func (f *fakeTransport) On(event string, handler transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeTransport) OnStateChange(handler transport.StateHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateHandlers = append(f.stateHandlers, handler)
}

// inject plays an inbound message through the registered handlers, the way
// the read loop would.
func (f *fakeTransport) inject(msg *transport.Message) {
	f.mu.Lock()
	handlers := make([]transport.Handler, len(f.handlers[msg.Event]))
	copy(handlers, f.handlers[msg.Event])
	f.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (f *fakeTransport) fireState(state transport.State) {
	f.mu.Lock()
	handlers := make([]transport.StateHandler, len(f.stateHandlers))
	copy(handlers, f.stateHandlers)
	f.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

// emittedEvents returns the event names of everything emitted so far.
func (f *fakeTransport) emittedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]string, len(f.emitted))
	for i, msg := range f.emitted {
		events[i] = msg.Event
	}
	return events
}
