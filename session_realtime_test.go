package sessionkit

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/draftpad/sessionkit/realtime"
)

func newHubSession(t *testing.T, hub *realtime.MemoryHub, userID string) *Session {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))

	sess, err := NewSessionBuilder().
		WithDocument("doc-1").
		WithCollaborator(testCollaborator(userID)).
		WithPersister(newMockPersister(testDocument("doc-1"))).
		WithEditor(&fakeEditor{content: "<p>hello world</p>"}).
		WithChannel(hub).
		WithClock(clk).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	mustLoad(t, sess)
	return sess
}

func TestSessionsShareHubPresence(t *testing.T) {
	hub := realtime.NewMemoryHub()
	defer hub.Close()

	alice := newHubSession(t, hub, "alice")
	bob := newHubSession(t, hub, "bob")
	defer alice.Close(context.Background())
	defer bob.Close(context.Background())

	// Bob's join announcement reaches Alice. Alice joined first, so her
	// announcement predates Bob's subscription; presence converges when
	// she next acts.
	waitFor(t, time.Second, func() bool {
		_, ok := alice.Presence().Get("bob")
		return ok
	}, "bob visible to alice")

	alice.UpdateCursor(17)
	waitFor(t, time.Second, func() bool {
		c, ok := bob.Presence().Get("alice")
		return ok && c.Cursor != nil && *c.Cursor == 17
	}, "alice's cursor visible to bob")
}

func TestSessionsShareHubComments(t *testing.T) {
	hub := realtime.NewMemoryHub()
	defer hub.Close()

	alice := newHubSession(t, hub, "alice")
	bob := newHubSession(t, hub, "bob")
	defer alice.Close(context.Background())
	defer bob.Close(context.Background())

	c := alice.AddComment("tighten this paragraph", 44)
	waitFor(t, time.Second, func() bool {
		_, ok := bob.Comments().Get(c.ID)
		return ok
	}, "comment replicated to bob")

	got, _ := bob.Comments().Get(c.ID)
	if got.Content != "tighten this paragraph" || got.Position != 44 {
		t.Errorf("replicated comment = %+v", got)
	}

	reply, ok := bob.ReplyToComment(c.ID, "agreed")
	if !ok {
		t.Fatal("reply rejected")
	}
	waitFor(t, time.Second, func() bool {
		local, _ := alice.Comments().Get(c.ID)
		return len(local.Replies) == 1
	}, "reply replicated to alice")

	local, _ := alice.Comments().Get(c.ID)
	if local.Replies[0].ID != reply.ID || local.Replies[0].Content != "agreed" {
		t.Errorf("replicated reply = %+v", local.Replies[0])
	}

	bob.ResolveComment(c.ID)
	waitFor(t, time.Second, func() bool {
		local, _ := alice.Comments().Get(c.ID)
		return local.Resolved
	}, "resolution replicated to alice")
}

func TestSessionLeaveAnnouncedOnClose(t *testing.T) {
	hub := realtime.NewMemoryHub()
	defer hub.Close()

	alice := newHubSession(t, hub, "alice")
	bob := newHubSession(t, hub, "bob")
	defer alice.Close(context.Background())

	waitFor(t, time.Second, func() bool {
		_, ok := alice.Presence().Get("bob")
		return ok
	}, "bob visible to alice")

	if err := bob.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		c, ok := alice.Presence().Get("bob")
		return ok && !c.IsActive
	}, "bob marked inactive after leaving")
}
