package session

import (
	"encoding/json"
	"fmt"
)

// EventType tags every message exchanged on a slide topic.
type EventType string

const (
	EventTitleUpdate         EventType = "title_update"
	EventReferenceImage      EventType = "reference_image"
	EventCountdownStart      EventType = "countdown_start"
	EventCountdownUpdate     EventType = "countdown_update"
	EventCountdownEnd        EventType = "countdown_end"
	EventSessionState        EventType = "session_state"
	EventRequestSessionState EventType = "request_session_state"
	EventImage               EventType = "image"
)

// Event is the wire envelope: {"type": "<event-name>", ...fields}.
// Fields are event-specific; absent fields stay nil/zero. Payloads are
// UTF-8 JSON text, published verbatim.
type Event struct {
	Type EventType `json:"type"`

	// title_update / session_state
	Title *string `json:"title,omitempty"`

	// reference_image / session_state
	ReferenceImage *string `json:"reference_image,omitempty"`

	// countdown_start
	Duration int `json:"duration,omitempty"`

	// countdown_update / session_state
	RemainingTime *int `json:"remainingTime,omitempty"`

	// session_state
	IsActive bool `json:"isActive,omitempty"`

	// image (audience submission broadcast)
	Image        string `json:"image,omitempty"`
	AudienceID   string `json:"audienceId,omitempty"`
	AudienceName string `json:"audienceName,omitempty"`
}

// Decode parses a relay payload. Malformed payloads return an error the
// caller logs and drops; the state machine skips that message and waits
// for the next one.
func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("parse session event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("parse session event: missing type")
	}
	return ev, nil
}

// Encode marshals an event for publishing.
func Encode(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		// Event has no unmarshalable fields; this cannot fail at runtime.
		panic(err)
	}
	return data
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
