package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/models"
	"github.com/sketchparty/sketchparty/internal/relay"
)

// TitleDebounce is how long title edits settle before broadcasting.
const TitleDebounce = 450 * time.Millisecond

// RoundStore persists the authoritative countdown window so a reloaded
// presenter can resume it instead of silently desyncing the audience.
type RoundStore interface {
	StartRound(ctx context.Context, slideID string, duration int, startedAt time.Time) error
	StopRound(ctx context.Context, slideID string) error
	GetRound(ctx context.Context, slideID string) (*models.RoundState, error)
}

// Presenter is the presenter-side session role: it owns the countdown,
// broadcasts state changes on the slide topic, answers audience state
// requests, and collects live submissions into the gallery.
//
// The countdown is a local one-second ticker decrementing an integer;
// it is wall-clock-approximate and drift over a long round is accepted.
type Presenter struct {
	relay   relay.Relay
	store   RoundStore
	clock   clockwork.Clock
	slideID string
	gallery *Gallery

	mu        sync.Mutex
	state     State
	active    bool
	remaining int
	stopCh    chan struct{}

	slideSub relay.Subscription
	subSub   relay.Subscription

	titleMu    sync.Mutex
	titleTimer clockwork.Timer
}

// NewPresenter creates a presenter role for one slide.
func NewPresenter(r relay.Relay, store RoundStore, clock clockwork.Clock, slideID string) *Presenter {
	return &Presenter{
		relay:   r,
		store:   store,
		clock:   clock,
		slideID: slideID,
		gallery: NewGallery(),
		state:   NewState(),
	}
}

// Start attaches the presenter to the slide and submission topics.
func (p *Presenter) Start(ctx context.Context) error {
	slideSub, err := p.relay.Subscribe(relay.SlideTopic(p.slideID), func(payload []byte) {
		p.handleSlideEvent(ctx, payload)
	})
	if err != nil {
		return err
	}
	subSub, err := p.relay.Subscribe(relay.SubmissionTopic(p.slideID), p.handleSubmission)
	if err != nil {
		slideSub.Unsubscribe()
		return err
	}
	p.slideSub = slideSub
	p.subSub = subSub
	return nil
}

// Stop detaches from the relay and halts any running countdown.
func (p *Presenter) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.active && p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
		p.active = false
	}
	p.mu.Unlock()

	p.titleMu.Lock()
	if p.titleTimer != nil {
		p.titleTimer.Stop()
		p.titleTimer = nil
	}
	p.titleMu.Unlock()

	if p.slideSub != nil {
		p.slideSub.Unsubscribe()
	}
	if p.subSub != nil {
		p.subSub.Unsubscribe()
	}
}

// Gallery returns the live gallery for the current round.
func (p *Presenter) Gallery() *Gallery {
	return p.gallery
}

// StartRound persists the round window, resets the gallery, broadcasts
// countdown_start, and begins ticking.
func (p *Presenter) StartRound(ctx context.Context, duration int) error {
	if err := p.store.StartRound(ctx, p.slideID, duration, p.clock.Now()); err != nil {
		return err
	}

	p.mu.Lock()
	if p.active && p.stopCh != nil {
		close(p.stopCh)
	}
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.active = true
	p.remaining = duration
	p.state = p.state.Apply(Event{Type: EventCountdownStart, Duration: duration})
	p.mu.Unlock()

	p.gallery.Reset()
	p.publish(ctx, Event{Type: EventCountdownStart, Duration: duration})

	go p.run(ctx, stopCh)
	return nil
}

// StopRound ends the round explicitly before expiry.
func (p *Presenter) StopRound(ctx context.Context) error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.active = false
	p.remaining = 0
	p.state = p.state.Apply(Event{Type: EventCountdownEnd})
	p.mu.Unlock()

	p.publish(ctx, Event{Type: EventCountdownEnd})
	return p.store.StopRound(ctx, p.slideID)
}

// Resume reconstructs a live countdown from the persisted round state
// after a presenter restart. An expired round is closed out instead.
func (p *Presenter) Resume(ctx context.Context) error {
	round, err := p.store.GetRound(ctx, p.slideID)
	if err != nil {
		return err
	}
	if !round.Active {
		return nil
	}

	remaining := round.Remaining(p.clock.Now())
	if remaining <= 0 {
		p.publish(ctx, Event{Type: EventCountdownEnd})
		return p.store.StopRound(ctx, p.slideID)
	}

	p.mu.Lock()
	if p.active && p.stopCh != nil {
		close(p.stopCh)
	}
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.active = true
	p.remaining = remaining
	p.state = p.state.Apply(Event{Type: EventCountdownUpdate, RemainingTime: intPtr(remaining)})
	p.mu.Unlock()

	log.Info().Str("slide_id", p.slideID).Int("remaining", remaining).Msg("resumed round from store")
	p.publish(ctx, Event{Type: EventCountdownUpdate, RemainingTime: intPtr(remaining)})

	go p.run(ctx, stopCh)
	return nil
}

// run ticks once per second until the round ends or is stopped.
func (p *Presenter) run(ctx context.Context, stopCh chan struct{}) {
	ticker := p.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.Chan():
			if done := p.tick(ctx); done {
				return
			}
		}
	}
}

// tick decrements the countdown and broadcasts the update; at zero it
// broadcasts countdown_end, clears the stored round, and reports done.
func (p *Presenter) tick(ctx context.Context) bool {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return true
	}
	p.remaining--
	remaining := p.remaining
	done := remaining <= 0
	if done {
		p.active = false
		p.stopCh = nil
		p.state = p.state.Apply(Event{Type: EventCountdownEnd})
	} else {
		p.state = p.state.Apply(Event{Type: EventCountdownUpdate, RemainingTime: intPtr(remaining)})
	}
	p.mu.Unlock()

	p.publish(ctx, Event{Type: EventCountdownUpdate, RemainingTime: intPtr(remaining)})
	if done {
		p.publish(ctx, Event{Type: EventCountdownEnd})
		if err := p.store.StopRound(ctx, p.slideID); err != nil {
			log.Error().Err(err).Str("slide_id", p.slideID).Msg("failed to clear round state")
		}
	}
	return done
}

// PublishTitle updates the local title immediately and broadcasts it
// after the debounce window settles.
func (p *Presenter) PublishTitle(ctx context.Context, title string) {
	p.mu.Lock()
	p.state.Title = title
	p.mu.Unlock()

	p.titleMu.Lock()
	defer p.titleMu.Unlock()
	if p.titleTimer != nil {
		p.titleTimer.Stop()
	}
	p.titleTimer = p.clock.AfterFunc(TitleDebounce, func() {
		p.publish(ctx, Event{Type: EventTitleUpdate, Title: strPtr(title)})
	})
}

// PublishReferenceImage broadcasts a new prompt image.
func (p *Presenter) PublishReferenceImage(ctx context.Context, image string) {
	p.mu.Lock()
	p.state.ReferenceImage = strPtr(image)
	p.mu.Unlock()
	p.publish(ctx, Event{Type: EventReferenceImage, ReferenceImage: strPtr(image)})
}

// State returns the presenter's view of the session.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Presenter) handleSlideEvent(ctx context.Context, payload []byte) {
	ev, err := Decode(payload)
	if err != nil {
		log.Debug().Err(err).Str("slide_id", p.slideID).Msg("dropping malformed event")
		return
	}

	switch ev.Type {
	case EventRequestSessionState:
		p.publishSessionState(ctx)
	case EventImage:
		// Legacy clients publish submissions on the slide topic.
		p.gallery.Add(Submission{AudienceID: ev.AudienceID, AudienceName: ev.AudienceName, Image: ev.Image})
	default:
		p.mu.Lock()
		p.state = p.state.Apply(ev)
		p.mu.Unlock()
	}
}

func (p *Presenter) handleSubmission(payload []byte) {
	ev, err := Decode(payload)
	if err != nil {
		log.Debug().Err(err).Str("slide_id", p.slideID).Msg("dropping malformed submission")
		return
	}
	if ev.Type != EventImage {
		return
	}
	p.gallery.Add(Submission{AudienceID: ev.AudienceID, AudienceName: ev.AudienceName, Image: ev.Image})
}

// publishSessionState answers a request_session_state with the
// authoritative countdown.
func (p *Presenter) publishSessionState(ctx context.Context) {
	p.mu.Lock()
	ev := Event{
		Type:     EventSessionState,
		IsActive: p.active,
		Title:    strPtr(p.state.Title),
	}
	if p.active {
		ev.RemainingTime = intPtr(p.remaining)
	}
	if p.state.ReferenceImage != nil {
		ev.ReferenceImage = p.state.ReferenceImage
	}
	p.mu.Unlock()

	p.publish(ctx, ev)
}

// publish is best effort: failures are logged, never retried.
func (p *Presenter) publish(ctx context.Context, ev Event) {
	if err := p.relay.Publish(ctx, relay.SlideTopic(p.slideID), Encode(ev)); err != nil {
		log.Error().Err(err).Str("slide_id", p.slideID).Str("type", string(ev.Type)).Msg("failed to publish event")
	}
}
