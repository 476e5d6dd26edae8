package offering

import (
	"sync"

	"github.com/wsusd/wsusd/internal/identity"
)

// UnapprovedEvent is published when phase C or D finds at least one
// applicable update that is not (yet) approved — spec.md §9: "a single
// producer, multi-consumer notification; subscribers may be absent. A
// non-blocking best-effort dispatch is acceptable; loss on overload is
// tolerated."
type UnapprovedEvent struct {
	Phase      string // "bundle" or "leaf"
	Identities []identity.Identity
}

const subscriberBuffer = 32

// Bus is the single-producer, multi-consumer event bus for
// UnapprovedEvent. Grounded on the buffered-channel, non-blocking-send
// idiom of the teacher agent's websocket client (not part of this
// repository).
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan UnapprovedEvent
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan UnapprovedEvent)}
}

// Subscribe registers a new consumer and returns its channel plus a cancel
// function to unsubscribe.
func (b *Bus) Subscribe() (<-chan UnapprovedEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan UnapprovedEvent, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish fans the event out to every current subscriber, non-blocking:
// a subscriber whose buffer is full misses the event rather than stalling
// the offering engine.
func (b *Bus) Publish(ev UnapprovedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warn("unapproved-update event dropped, subscriber buffer full")
		}
	}
}
