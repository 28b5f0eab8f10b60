package relay

import (
	"context"
	"sync"
)

// Memory is an in-process Relay. It backs tests and single-binary demo
// runs where no broker is reachable; semantics match the NATS relay
// (topic-filtered dispatch, ref-counted subscriptions, best-effort
// delivery).
type Memory struct {
	mu     sync.Mutex
	topics map[string]map[int64]HandlerFunc
	nextID int64
	closed bool
}

func NewMemory() *Memory {
	return &Memory{topics: make(map[string]map[int64]HandlerFunc)}
}

// Publish delivers the payload synchronously to every handler on the
// topic. Handlers run on the caller's goroutine.
func (r *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	var handlers []HandlerFunc
	for _, h := range r.topics[topic] {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (r *Memory) Subscribe(topic string, handler HandlerFunc) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topics[topic] == nil {
		r.topics[topic] = make(map[int64]HandlerFunc)
	}
	id := r.nextID
	r.nextID++
	r.topics[topic][id] = handler

	return &memorySubscription{relay: r, topic: topic, id: id}, nil
}

func (r *Memory) unsubscribe(topic string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handlers, ok := r.topics[topic]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(r.topics, topic)
		}
	}
}

func (r *Memory) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = make(map[string]map[int64]HandlerFunc)
	r.closed = true
}

type memorySubscription struct {
	relay *Memory
	topic string
	id    int64
	once  sync.Once
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.relay.unsubscribe(s.topic, s.id)
	})
	return nil
}
