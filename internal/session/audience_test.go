package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchparty/sketchparty/internal/relay"
)

func TestAudienceRequestsStateOnStart(t *testing.T) {
	r := relay.NewMemory()
	clock := clockwork.NewFakeClock()

	events := collectEvents(t, r, relay.SlideTopic("slide-1"))

	a := NewAudience(r, clock, "slide-1", nil)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	ev := nextEvent(t, events)
	assert.Equal(t, EventRequestSessionState, ev.Type)
}

func TestAudienceRetriesStateRequestOnce(t *testing.T) {
	r := relay.NewMemory()
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var requests int
	sub, err := r.Subscribe(relay.SlideTopic("slide-1"), func(payload []byte) {
		ev, err := Decode(payload)
		if err != nil {
			return
		}
		if ev.Type == EventRequestSessionState {
			mu.Lock()
			requests++
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	a := NewAudience(r, clock, "slide-1", nil)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	clock.BlockUntil(1)
	clock.Advance(StateRequestRetryAfter)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return requests == 2
	}, 2*time.Second, 10*time.Millisecond)

	// No third request; the retry fires once.
	clock.Advance(StateRequestRetryAfter)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, requests)
}

func TestAudienceSkipsRetryWhenPresenterResponds(t *testing.T) {
	r := relay.NewMemory()
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var requests int
	sub, err := r.Subscribe(relay.SlideTopic("slide-1"), func(payload []byte) {
		ev, err := Decode(payload)
		if err != nil {
			return
		}
		if ev.Type == EventRequestSessionState {
			mu.Lock()
			requests++
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	a := NewAudience(r, clock, "slide-1", nil)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	reply := Event{Type: EventSessionState, IsActive: true, RemainingTime: intPtr(9)}
	require.NoError(t, r.Publish(context.Background(), relay.SlideTopic("slide-1"), Encode(reply)))

	clock.BlockUntil(1)
	clock.Advance(StateRequestRetryAfter)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)

	state := a.State()
	assert.Equal(t, PhaseActive, state.Phase)
	require.NotNil(t, state.Remaining)
	assert.Equal(t, 9, *state.Remaining)
}

func TestAudienceSubmitGatedOnActiveRound(t *testing.T) {
	r := relay.NewMemory()
	clock := clockwork.NewFakeClock()

	var persisted []string
	persist := func(ctx context.Context, slideID, audienceID, audienceName, imageData string) error {
		persisted = append(persisted, imageData)
		return nil
	}

	a := NewAudience(r, clock, "slide-1", persist)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	err := a.Submit(context.Background(), "a1", "Ana", "png")
	assert.ErrorIs(t, err, ErrRoundNotActive)
	assert.Empty(t, persisted)

	start := Event{Type: EventCountdownStart, Duration: 10}
	require.NoError(t, r.Publish(context.Background(), relay.SlideTopic("slide-1"), Encode(start)))
	require.True(t, a.CanSubmit())

	submissions := collectEvents(t, r, relay.SubmissionTopic("slide-1"))

	require.NoError(t, a.Submit(context.Background(), "a1", "Ana", "png"))
	require.Len(t, persisted, 1)

	ev := nextEvent(t, submissions)
	assert.Equal(t, EventImage, ev.Type)
	assert.Equal(t, "a1", ev.AudienceID)
	assert.Equal(t, "png", ev.Image)

	end := Event{Type: EventCountdownEnd}
	require.NoError(t, r.Publish(context.Background(), relay.SlideTopic("slide-1"), Encode(end)))
	err = a.Submit(context.Background(), "a1", "Ana", "late")
	assert.ErrorIs(t, err, ErrRoundNotActive)
	assert.Len(t, persisted, 1)
}

func TestAudienceDropsMalformedPayloads(t *testing.T) {
	r := relay.NewMemory()
	clock := clockwork.NewFakeClock()

	a := NewAudience(r, clock, "slide-1", nil)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	require.NoError(t, r.Publish(context.Background(), relay.SlideTopic("slide-1"), []byte("{broken")))
	assert.Equal(t, PhaseIdle, a.State().Phase)

	// A later valid event still lands.
	update := Event{Type: EventCountdownUpdate, RemainingTime: intPtr(4)}
	require.NoError(t, r.Publish(context.Background(), relay.SlideTopic("slide-1"), Encode(update)))
	assert.Equal(t, PhaseActive, a.State().Phase)
}
