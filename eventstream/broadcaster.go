package eventstream

import (
	"sync"

	"github.com/hatchpad/agentcore/agentloop"
)

// Broadcaster fans one loop's event sequence out to multiple subscribers.
// New subscribers first receive a replay of everything published so far, so
// a client that connects mid-run still sees the full ordered sequence. A
// subscriber that stops draining its channel is dropped rather than
// allowed to stall the publisher.
type Broadcaster struct {
	mu      sync.Mutex
	history []agentloop.AgentEvent
	subs    map[chan agentloop.AgentEvent]struct{}
	closed  bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan agentloop.AgentEvent]struct{})}
}

// Publish appends the event to history and delivers it to every subscriber.
// Slow subscribers are dropped: their channel is closed and removed.
func (b *Broadcaster) Publish(ev agentloop.AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Subscribe returns a channel that first replays all events published so
// far, then receives live events. cancel detaches the subscriber; it is
// safe to call after the broadcaster closed.
func (b *Broadcaster) Subscribe(buffer int) (events <-chan agentloop.AgentEvent, cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer < len(b.history)+16 {
		buffer = len(b.history) + 16
	}
	ch := make(chan agentloop.AgentEvent, buffer)
	for _, ev := range b.history {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.subs[ch] = struct{}{}
	cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// History returns a copy of everything published so far.
func (b *Broadcaster) History() []agentloop.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]agentloop.AgentEvent, len(b.history))
	copy(out, b.history)
	return out
}

// Close closes every subscriber channel. Further Publish calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Pump publishes every event from the channel until it closes, then closes
// the broadcaster. Intended to bridge a Runner's event channel:
//
//	events, wait := runner.SendMessage(ctx, in)
//	go bcast.Pump(events)
func (b *Broadcaster) Pump(events <-chan agentloop.AgentEvent) {
	for ev := range events {
		b.Publish(ev)
	}
	b.Close()
}
