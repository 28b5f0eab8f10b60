package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/relay"
)

// StateRequestRetryAfter is how long the audience waits for a presenter
// response before re-requesting the session state. Exactly one retry:
// it covers a presenter that joined the topic after the first request.
const StateRequestRetryAfter = 5 * time.Second

// ErrRoundNotActive indicates a submission outside an active round.
var ErrRoundNotActive = errors.New("round is not active: submissions are closed")

// PersistFunc durably stores a submission (the REST insert). Called for
// every submission regardless of live-gallery dedup.
type PersistFunc func(ctx context.Context, slideID, audienceID, audienceName, imageData string) error

// Audience is the audience-side session role: it reconstructs the
// session state from the slide topic, requests a sync on start, and
// gates submissions on an active round.
type Audience struct {
	relay   relay.Relay
	clock   clockwork.Clock
	slideID string
	persist PersistFunc

	mu          sync.Mutex
	state       State
	sawResponse bool

	sub        relay.Subscription
	retryTimer clockwork.Timer
}

// NewAudience creates an audience role for one slide. persist may be
// nil for view-only members.
func NewAudience(r relay.Relay, clock clockwork.Clock, slideID string, persist PersistFunc) *Audience {
	return &Audience{
		relay:   r,
		clock:   clock,
		slideID: slideID,
		persist: persist,
		state:   NewState(),
	}
}

// Start subscribes to the slide topic and requests the current session
// state. If no response arrives within StateRequestRetryAfter the
// request goes out once more.
func (a *Audience) Start(ctx context.Context) error {
	sub, err := a.relay.Subscribe(relay.SlideTopic(a.slideID), a.handle)
	if err != nil {
		return err
	}
	a.sub = sub

	a.requestState(ctx)
	a.retryTimer = a.clock.AfterFunc(StateRequestRetryAfter, func() {
		a.mu.Lock()
		responded := a.sawResponse
		a.mu.Unlock()
		if !responded {
			log.Debug().Str("slide_id", a.slideID).Msg("no session state response, retrying once")
			a.requestState(ctx)
		}
	})
	return nil
}

// Stop detaches from the relay.
func (a *Audience) Stop() {
	if a.retryTimer != nil {
		a.retryTimer.Stop()
	}
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
}

// State returns the current derived session state.
func (a *Audience) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CanSubmit reports whether a round is active.
func (a *Audience) CanSubmit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.CanSubmit()
}

// Submit broadcasts the drawing for the live gallery and persists it
// durably. Returns ErrRoundNotActive outside an active round.
func (a *Audience) Submit(ctx context.Context, audienceID, audienceName, imageData string) error {
	if !a.CanSubmit() {
		return ErrRoundNotActive
	}

	ev := Event{
		Type:         EventImage,
		Image:        imageData,
		AudienceID:   audienceID,
		AudienceName: audienceName,
	}
	if err := a.relay.Publish(ctx, relay.SubmissionTopic(a.slideID), Encode(ev)); err != nil {
		// Gallery broadcast is best effort; the durable insert still runs.
		log.Error().Err(err).Str("slide_id", a.slideID).Msg("failed to broadcast submission")
	}

	if a.persist == nil {
		return nil
	}
	return a.persist(ctx, a.slideID, audienceID, audienceName, imageData)
}

func (a *Audience) handle(payload []byte) {
	ev, err := Decode(payload)
	if err != nil {
		log.Debug().Err(err).Str("slide_id", a.slideID).Msg("dropping malformed event")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case EventCountdownStart, EventCountdownUpdate, EventCountdownEnd, EventSessionState:
		a.sawResponse = true
	}
	a.state = a.state.Apply(ev)
}

func (a *Audience) requestState(ctx context.Context) {
	ev := Event{Type: EventRequestSessionState}
	if err := a.relay.Publish(ctx, relay.SlideTopic(a.slideID), Encode(ev)); err != nil {
		log.Error().Err(err).Str("slide_id", a.slideID).Msg("failed to request session state")
	}
}
