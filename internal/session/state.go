package session

// Phase is the round phase derived from the message stream.
type Phase string

const (
	PhaseIdle   Phase = "IDLE"
	PhaseActive Phase = "ACTIVE"
)

// State is the derived session state each client reconstructs from the
// event stream layered on top of a REST-fetched baseline. It lives only
// in memory and has no canonical owner.
type State struct {
	Phase          Phase
	Remaining      *int
	Title          string
	ReferenceImage *string
}

// NewState returns the idle baseline.
func NewState() State {
	return State{Phase: PhaseIdle}
}

// Apply folds one event into the state and returns the result. Title and
// reference image are orthogonal to the round phase and updatable in any
// state. A countdown_update received while idle activates the session:
// a lost or reordered countdown_start must not strand the audience.
func (s State) Apply(ev Event) State {
	switch ev.Type {
	case EventTitleUpdate:
		if ev.Title != nil {
			s.Title = *ev.Title
		}

	case EventReferenceImage:
		if ev.ReferenceImage != nil {
			s.ReferenceImage = ev.ReferenceImage
		}

	case EventCountdownStart:
		s.Phase = PhaseActive
		s.Remaining = intPtr(ev.Duration)

	case EventCountdownUpdate:
		if ev.RemainingTime != nil {
			s.Phase = PhaseActive
			s.Remaining = intPtr(*ev.RemainingTime)
		}

	case EventCountdownEnd:
		s.Phase = PhaseIdle
		s.Remaining = nil

	case EventSessionState:
		if ev.IsActive && ev.RemainingTime != nil {
			s.Phase = PhaseActive
			s.Remaining = intPtr(*ev.RemainingTime)
		} else {
			s.Phase = PhaseIdle
			s.Remaining = nil
		}
		if ev.Title != nil {
			s.Title = *ev.Title
		}
		if ev.ReferenceImage != nil {
			s.ReferenceImage = ev.ReferenceImage
		}

	case EventRequestSessionState, EventImage:
		// No local state change.

	default:
		// Unknown event types are ignored.
	}
	return s
}

// CanSubmit reports whether audience submissions are currently accepted.
func (s State) CanSubmit() bool {
	return s.Phase == PhaseActive
}
