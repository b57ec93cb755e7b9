package sessionkit

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestCommentStore() (*CommentStore, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))
	return NewCommentStore(clk, nil), clk
}

func TestCommentAddAndGet(t *testing.T) {
	store, _ := newTestCommentStore()
	author := testCollaborator("u1")

	c := store.Add("needs a stronger hook", 120, author)
	if c.ID == "" {
		t.Fatal("comment id not assigned")
	}
	if c.Resolved {
		t.Error("new comments start unresolved")
	}
	if c.Position != 120 {
		t.Errorf("position = %d, want 120", c.Position)
	}

	got, ok := store.Get(c.ID)
	if !ok {
		t.Fatal("comment not found after add")
	}
	if got.Content != "needs a stronger hook" {
		t.Errorf("content = %q", got.Content)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestCommentAddWithIDIsIdempotent(t *testing.T) {
	store, _ := newTestCommentStore()

	first := store.AddWithID("c-1", "original", 10, testCollaborator("u1"))
	second := store.AddWithID("c-1", "attempted overwrite", 99, testCollaborator("u2"))

	if second.Content != first.Content || second.Position != first.Position {
		t.Errorf("re-add changed the comment: %+v", second)
	}
	active, resolved := store.Counts()
	if active != 1 || resolved != 0 {
		t.Errorf("counts = %d/%d, want 1/0", active, resolved)
	}
}

func TestCommentResolveIsOneWayAndIdempotent(t *testing.T) {
	store, _ := newTestCommentStore()
	c := store.Add("fix this", 5, testCollaborator("u1"))

	// Unknown id is a no-op, not an error.
	store.Resolve("missing")

	store.Resolve(c.ID)
	got, _ := store.Get(c.ID)
	if !got.Resolved {
		t.Fatal("comment not resolved")
	}
	firstUpdate := got.UpdatedAt

	// Resolving again changes nothing, including the timestamp.
	store.Resolve(c.ID)
	got, _ = store.Get(c.ID)
	if !got.UpdatedAt.Equal(firstUpdate) {
		t.Error("double resolve bumped UpdatedAt")
	}

	active, resolved := store.Counts()
	if active != 0 || resolved != 1 {
		t.Errorf("counts = %d/%d, want 0/1", active, resolved)
	}
}

func TestCommentRepliesAppendInOrder(t *testing.T) {
	store, clk := newTestCommentStore()
	c := store.Add("thread root", 0, testCollaborator("u1"))

	for i, content := range []string{"first", "second", "third"} {
		clk.Add(time.Minute)
		if _, ok := store.Reply(c.ID, content, testCollaborator("u2")); !ok {
			t.Fatalf("reply %d rejected", i)
		}
	}

	got, _ := store.Get(c.ID)
	if len(got.Replies) != 3 {
		t.Fatalf("replies = %d, want 3", len(got.Replies))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got.Replies[i].Content != want {
			t.Errorf("replies[%d] = %q, want %q", i, got.Replies[i].Content, want)
		}
	}

	// Unknown comment id is a no-op.
	if _, ok := store.Reply("missing", "lost", testCollaborator("u2")); ok {
		t.Error("reply to unknown comment should report ok=false")
	}

	// Duplicate reply ids from event redelivery are dropped.
	store.ReplyWithID(c.ID, got.Replies[0].ID, "dup", testCollaborator("u3"))
	got, _ = store.Get(c.ID)
	if len(got.Replies) != 3 {
		t.Errorf("replies = %d after duplicate id, want 3", len(got.Replies))
	}
}

func TestCommentReplyToResolvedComment(t *testing.T) {
	store, _ := newTestCommentStore()
	c := store.Add("done deal", 0, testCollaborator("u1"))
	store.Resolve(c.ID)

	// Resolution does not close the thread.
	if _, ok := store.Reply(c.ID, "followup", testCollaborator("u2")); !ok {
		t.Fatal("reply to resolved comment should succeed")
	}
}

func TestCommentPartitionsNewestFirst(t *testing.T) {
	store, clk := newTestCommentStore()

	a := store.Add("oldest", 0, testCollaborator("u1"))
	clk.Add(time.Minute)
	b := store.Add("middle", 1, testCollaborator("u1"))
	clk.Add(time.Minute)
	c := store.Add("newest", 2, testCollaborator("u1"))

	store.Resolve(b.ID)

	active := store.Active()
	if len(active) != 2 || active[0].ID != c.ID || active[1].ID != a.ID {
		t.Errorf("active order wrong: %+v", active)
	}
	resolved := store.Resolved()
	if len(resolved) != 1 || resolved[0].ID != b.ID {
		t.Errorf("resolved = %+v, want only the middle comment", resolved)
	}
}

func TestCommentCopiesAreIsolated(t *testing.T) {
	store, _ := newTestCommentStore()
	c := store.Add("root", 0, testCollaborator("u1"))
	store.Reply(c.ID, "reply", testCollaborator("u2"))

	got, _ := store.Get(c.ID)
	got.Replies[0].Content = "mutated"
	got.Content = "mutated"

	fresh, _ := store.Get(c.ID)
	if fresh.Content != "root" || fresh.Replies[0].Content != "reply" {
		t.Error("returned copies must not alias store internals")
	}
}
