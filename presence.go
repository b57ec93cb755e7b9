package sessionkit

import (
	"sort"
	"sync"
)

// PresenceTracker maintains the set of collaborators currently viewing or
// editing one document and their last-known cursor offsets. Presence is
// ephemeral: it is rebuilt fresh each session and never persisted.
//
// Cursor updates are high-frequency and fire-and-forget; the only guarantee
// is last-write-wins per collaborator.
type PresenceTracker struct {
	mu    sync.RWMutex
	seen  map[string]*Collaborator // every collaborator observed this session
	stats MetricsCollector
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker(metrics MetricsCollector) *PresenceTracker {
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &PresenceTracker{
		seen:  make(map[string]*Collaborator),
		stats: metrics,
	}
}

// Join adds the collaborator to the active set. Re-joining reactivates a
// previously seen collaborator and refreshes their identity fields.
func (p *PresenceTracker) Join(c Collaborator) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.IsActive = true
	if prev, ok := p.seen[c.ID]; ok {
		c.Cursor = prev.Cursor // keep the last-known cursor across rejoins
	}
	stored := c
	p.seen[c.ID] = &stored
	p.stats.RecordPresence(p.activeCountLocked())
}

// Leave marks the collaborator inactive. Unknown ids are a no-op. The
// collaborator stays known so comment authorship survives their departure.
func (p *PresenceTracker) Leave(collaboratorID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.seen[collaboratorID]
	if !ok {
		return
	}
	c.IsActive = false
	c.Cursor = nil
	p.stats.RecordPresence(p.activeCountLocked())
}

// UpdateCursor records the collaborator's cursor offset, last write wins.
// Unknown or inactive collaborators are a no-op.
func (p *PresenceTracker) UpdateCursor(collaboratorID string, position int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.seen[collaboratorID]
	if !ok || !c.IsActive {
		return
	}
	pos := position
	c.Cursor = &pos
}

// Active returns the currently active collaborators, ordered by id for
// deterministic rendering.
func (p *PresenceTracker) Active() []Collaborator {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Collaborator, 0, len(p.seen))
	for _, c := range p.seen {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the collaborator's current presence record, active or not.
func (p *PresenceTracker) Get(collaboratorID string) (Collaborator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.seen[collaboratorID]
	if !ok {
		return Collaborator{}, false
	}
	return *c, true
}

// ActiveCount returns the size of the active set.
func (p *PresenceTracker) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeCountLocked()
}

func (p *PresenceTracker) activeCountLocked() int {
	n := 0
	for _, c := range p.seen {
		if c.IsActive {
			n++
		}
	}
	return n
}
