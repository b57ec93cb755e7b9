package sessionkit

import "testing"

func TestPresenceJoinLeave(t *testing.T) {
	p := NewPresenceTracker(nil)

	p.Join(testCollaborator("u1"))
	p.Join(testCollaborator("u2"))
	if got := p.ActiveCount(); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}

	p.Leave("u1")
	active := p.Active()
	if len(active) != 1 || active[0].ID != "u2" {
		t.Fatalf("active = %+v, want only u2", active)
	}

	// Departed collaborators stay known for comment authorship.
	c, ok := p.Get("u1")
	if !ok {
		t.Fatal("u1 should still be known after leaving")
	}
	if c.IsActive {
		t.Error("u1 should be inactive")
	}
	if c.Cursor != nil {
		t.Error("cursor should be cleared on leave")
	}

	// Leaving an unknown id is a no-op.
	p.Leave("ghost")
	if got := p.ActiveCount(); got != 1 {
		t.Errorf("active = %d after no-op leave, want 1", got)
	}
}

func TestPresenceRejoinKeepsCursor(t *testing.T) {
	p := NewPresenceTracker(nil)

	p.Join(testCollaborator("u1"))
	p.UpdateCursor("u1", 42)

	rejoined := testCollaborator("u1")
	rejoined.DisplayName = "Renamed"
	p.Join(rejoined)

	c, _ := p.Get("u1")
	if c.DisplayName != "Renamed" {
		t.Errorf("display name = %q, rejoin should refresh identity", c.DisplayName)
	}
	if c.Cursor == nil || *c.Cursor != 42 {
		t.Errorf("cursor = %v, rejoin should keep the last-known offset", c.Cursor)
	}
}

func TestPresenceCursorLastWriteWins(t *testing.T) {
	p := NewPresenceTracker(nil)
	p.Join(testCollaborator("u1"))

	p.UpdateCursor("u1", 10)
	p.UpdateCursor("u1", 25)
	c, _ := p.Get("u1")
	if c.Cursor == nil || *c.Cursor != 25 {
		t.Errorf("cursor = %v, want 25", c.Cursor)
	}

	// Unknown and inactive collaborators are no-ops.
	p.UpdateCursor("ghost", 5)
	p.Leave("u1")
	p.UpdateCursor("u1", 99)
	c, _ = p.Get("u1")
	if c.Cursor != nil {
		t.Errorf("cursor = %v after leave, want nil", c.Cursor)
	}
}

func TestPresenceActiveOrderedByID(t *testing.T) {
	p := NewPresenceTracker(nil)
	p.Join(testCollaborator("c"))
	p.Join(testCollaborator("a"))
	p.Join(testCollaborator("b"))

	active := p.Active()
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3", len(active))
	}
	for i, want := range []string{"a", "b", "c"} {
		if active[i].ID != want {
			t.Errorf("active[%d] = %s, want %s", i, active[i].ID, want)
		}
	}
}

func TestPresenceMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	p := NewPresenceTracker(metrics)

	p.Join(testCollaborator("u1"))
	p.Join(testCollaborator("u2"))
	p.Leave("u1")

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	want := []int{1, 2, 1}
	if len(metrics.presence) != len(want) {
		t.Fatalf("presence metrics = %v, want %v", metrics.presence, want)
	}
	for i := range want {
		if metrics.presence[i] != want[i] {
			t.Errorf("presence[%d] = %d, want %d", i, metrics.presence[i], want[i])
		}
	}
}
