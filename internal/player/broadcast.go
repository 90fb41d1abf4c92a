package player

import "sync"

// IdentityEventKind distinguishes identity transitions.
type IdentityEventKind string

const (
	IdentityLogin  IdentityEventKind = "login"
	IdentityLogout IdentityEventKind = "logout"
)

// IdentityEvent announces an identity-state change to every live client
// instance, the in-process analog of a cross-tab broadcast. Tokens travel in
// the event so subscribers can swap credentials without a shared store.
type IdentityEvent struct {
	Kind         IdentityEventKind
	SessionToken string
	AnonToken    string
}

// Broadcaster fans identity events out to subscribers. Publishing never
// blocks: a subscriber that stopped draining its channel misses events
// rather than stalling the publisher.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan IdentityEvent
	next int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan IdentityEvent)}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (b *Broadcaster) Subscribe() (<-chan IdentityEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan IdentityEvent, 4)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *Broadcaster) Publish(ev IdentityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
