// Package relay is the pub/sub fan-out layer. It carries opaque JSON
// payloads between presenter and audience clients over an external
// broker and makes no delivery, ordering, or exactly-once promises of
// its own: whatever the broker provides is what callers get.
//
// Dispatch is topic-filtered: a handler registered for one topic never
// sees another topic's messages. Subscriptions on a topic are
// reference-counted, so tearing down one consumer leaves the others
// attached.
package relay

import "context"

// HandlerFunc receives the raw payload delivered on a subscribed topic.
type HandlerFunc func(payload []byte)

// Subscription is one consumer's handle on a topic. Unsubscribe detaches
// only this consumer.
type Subscription interface {
	Unsubscribe() error
}

// Relay publishes and subscribes opaque payloads on named topics.
type Relay interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler HandlerFunc) (Subscription, error)
	Close()
}

// SlideTopic is the broker subject carrying title, reference image,
// countdown, and session events for one slide.
func SlideTopic(slideID string) string {
	return "presenter.slide." + slideID
}

// SubmissionTopic is the broker subject carrying ephemeral drawing
// broadcasts for one slide.
func SubmissionTopic(slideID string) string {
	return "presenter.slide." + slideID + ".submission"
}
