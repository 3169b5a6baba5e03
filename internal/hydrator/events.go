package hydrator

import "sync"

// Bus is the scheduler's publish/subscribe channel for update events.
// Subscribers are addressable handles that can be revoked individually or
// all at once on disposal.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Update)
}

// Subscription is a revocable handle on the update stream.
type Subscription struct {
	bus *Bus
	id  int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Update))}
}

// Subscribe registers a handler for every future update.
func (b *Bus) Subscribe(fn func(Update)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	return &Subscription{bus: b, id: id}
}

// Close revokes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
}

// publish delivers an update to all current subscribers.
func (b *Bus) publish(u Update) {
	b.mu.Lock()
	handlers := make([]func(Update), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(u)
	}
}

// closeAll detaches every subscriber.
func (b *Bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]func(Update))
}
