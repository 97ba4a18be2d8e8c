package core

import "sync"

// Topics emitted by the domain services. Listeners get no payload and must
// re-read the relevant store on notify.
const TopicCoursesUpdated = "edumvp_courses_updated"

// Event is an empty notification on a named topic.
type Event struct {
	Topic string
}

// Broker is a minimal in-process pub/sub bus. A mutation publishes after
// writing its collection; mounted consumers re-read on receive. Publish never
// blocks: a subscriber that cannot keep up misses events, which is harmless
// since every notification means "re-read everything" anyway.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel receiving events for topic and a cancel
// function releasing the subscription.
func (b *Broker) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, sub := range subs {
			if sub == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (b *Broker) Publish(topic string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- Event{Topic: topic}:
		default: // drop for slow subscribers
		}
	}
}
