package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS-backed relay.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS relay configuration.
func DefaultNATSConfig(url string) NATSConfig {
	if url == "" {
		url = nats.DefaultURL
	}
	return NATSConfig{
		URL:           url,
		Name:          "sketchparty-relay",
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATS is a Relay backed by a core NATS connection. One connection per
// process; topic subscriptions on the broker are shared and
// reference-counted across consumers.
type NATS struct {
	nc *nats.Conn

	mu     sync.Mutex
	topics map[string]*topicSubs
}

type topicSubs struct {
	sub      *nats.Subscription
	handlers map[int64]HandlerFunc
	nextID   int64
}

// ConnectNATS dials the broker and returns a relay wrapping the
// connection. Reconnects are left to the NATS client; the relay adds no
// retry or backoff of its own.
func ConnectNATS(cfg NATSConfig) (*NATS, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATS{
		nc:     nc,
		topics: make(map[string]*topicSubs),
	}, nil
}

// Publish sends the payload verbatim on the topic.
func (r *NATS) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.nc.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for the topic. The first subscriber for
// a topic opens one broker subscription; later subscribers share it.
func (r *NATS) Subscribe(topic string, handler HandlerFunc) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.topics[topic]
	if !ok {
		ts = &topicSubs{handlers: make(map[int64]HandlerFunc)}
		sub, err := r.nc.Subscribe(topic, func(msg *nats.Msg) {
			r.dispatch(topic, msg.Data)
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		ts.sub = sub
		r.topics[topic] = ts
	}

	id := ts.nextID
	ts.nextID++
	ts.handlers[id] = handler

	return &natsSubscription{relay: r, topic: topic, id: id}, nil
}

func (r *NATS) dispatch(topic string, payload []byte) {
	r.mu.Lock()
	ts, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	handlers := make([]HandlerFunc, 0, len(ts.handlers))
	for _, h := range ts.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (r *NATS) unsubscribe(topic string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.topics[topic]
	if !ok {
		return nil
	}
	delete(ts.handlers, id)
	if len(ts.handlers) > 0 {
		return nil
	}
	delete(r.topics, topic)
	if err := ts.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", topic, err)
	}
	return nil
}

// Close drains the broker connection and drops all handlers.
func (r *NATS) Close() {
	r.mu.Lock()
	r.topics = make(map[string]*topicSubs)
	r.mu.Unlock()
	r.nc.Close()
}

type natsSubscription struct {
	relay *NATS
	topic string
	id    int64
	once  sync.Once
	err   error
}

func (s *natsSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.relay.unsubscribe(s.topic, s.id)
	})
	return s.err
}
