package session

import "sync"

// Submission is one entry in the live gallery.
type Submission struct {
	AudienceID   string `json:"audienceId"`
	AudienceName string `json:"audienceName"`
	Image        string `json:"image"`
}

// Gallery is the in-memory, non-persisted set of submissions shown to
// the presenter during a round. The last submission per audience member
// wins; the durable history lives in the drawings table regardless.
type Gallery struct {
	mu    sync.Mutex
	byID  map[string]int
	order []Submission
}

func NewGallery() *Gallery {
	return &Gallery{byID: make(map[string]int)}
}

// Add inserts or replaces the submission for an audience member.
// Replacement keeps the member's original arrival position.
func (g *Gallery) Add(sub Submission) {
	if sub.AudienceID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if i, ok := g.byID[sub.AudienceID]; ok {
		g.order[i] = sub
		return
	}
	g.byID[sub.AudienceID] = len(g.order)
	g.order = append(g.order, sub)
}

// Snapshot returns the current submissions in arrival order.
func (g *Gallery) Snapshot() []Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Submission, len(g.order))
	copy(out, g.order)
	return out
}

// Reset clears the gallery for a new round.
func (g *Gallery) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID = make(map[string]int)
	g.order = nil
}

// Len returns the number of distinct audience members with a submission.
func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
