// Package eventbus implements the Event Bus (spec §4.8): best-effort,
// non-blocking fan-out of LifecycleEvent and ArtifactEvent values to
// however many /events SSE listeners are currently attached.
//
// No package in the retrieval pack implements a pub-sub fan-out (the
// closest analogue, other_examples' wingthing egg-server replayBuffer,
// uses cursor-based reads specifically to guarantee no byte is ever
// dropped — the opposite of what spec §4.8 asks for, a slow listener
// must never stall a Run). Bus is therefore written fresh in the
// teacher's plain-sync.Mutex-plus-channels register, the same
// concurrency idiom the teacher's client.go and dyad.go use.
package eventbus

import "sync"

// Subscription is a single listener's view of the bus: a channel of
// events and an Unsubscribe to stop receiving and release resources.
type Subscription struct {
	Events <-chan any
	cancel func()
}

// Unsubscribe detaches this subscription from the bus. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() { s.cancel() }

// Bus multicasts published events to every current subscriber. Delivery
// is best-effort: a subscriber whose buffer is full has the event
// dropped rather than blocking the publisher (spec §4.8 "slow listeners
// never back-pressure a Run").
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan any
	buffer int
}

// New constructs a Bus whose per-subscriber channel buffer holds buffer
// events before dropping. buffer <= 0 defaults to 64.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: map[uint64]chan any{}, buffer: buffer}
}

// Subscribe registers a new listener and returns its Subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan any, b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	return &Subscription{
		Events: ch,
		cancel: func() {
			b.mu.Lock()
			if existing, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(existing)
			}
			b.mu.Unlock()
		},
	}
}

// Publish fans event out to every current subscriber without blocking.
// A subscriber whose channel is full is skipped; the event is lost for
// that listener only.
func (b *Bus) Publish(event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the current number of attached listeners, for
// diagnostics (/health, /whoami are not wired to this, but tests use it).
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
