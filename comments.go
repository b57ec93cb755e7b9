package sessionkit

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// CommentStore maintains the position-anchored comment threads of one
// document. Unknown ids are treated as no-ops throughout: comment state may
// legitimately diverge across collaborators, so idempotence beats strictness.
type CommentStore struct {
	mu    sync.RWMutex
	byID  map[string]*Comment
	clock clock.Clock
	stats MetricsCollector
}

// NewCommentStore creates an empty store.
func NewCommentStore(clk clock.Clock, metrics MetricsCollector) *CommentStore {
	if clk == nil {
		clk = clock.New()
	}
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &CommentStore{
		byID:  make(map[string]*Comment),
		clock: clk,
		stats: metrics,
	}
}

// Add appends a new unresolved comment anchored at position and returns it.
func (s *CommentStore) Add(content string, position int, author Collaborator) Comment {
	return s.AddWithID(uuid.NewString(), content, position, author)
}

// AddWithID appends a comment under a caller-supplied id, used when ingesting
// comments created by other collaborators. Re-adding an existing id is a
// no-op returning the stored comment.
func (s *CommentStore) AddWithID(id, content string, position int, author Collaborator) Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[id]; ok {
		return cloneComment(existing)
	}

	now := s.clock.Now()
	c := &Comment{
		ID:        id,
		Content:   content,
		Author:    author,
		Position:  position,
		Resolved:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[id] = c
	s.stats.RecordComments("add")
	return cloneComment(c)
}

// Resolve marks the comment resolved. Resolution is one-way: there is no
// un-resolve. Unknown ids and already-resolved comments are no-ops.
func (s *CommentStore) Resolve(commentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[commentID]
	if !ok || c.Resolved {
		return
	}
	c.Resolved = true
	c.UpdatedAt = s.clock.Now()
	s.stats.RecordComments("resolve")
}

// Reply appends a reply to the comment, preserving call order. Unknown
// comment ids are a no-op returning ok=false.
func (s *CommentStore) Reply(commentID, content string, author Collaborator) (CommentReply, bool) {
	return s.ReplyWithID(commentID, uuid.NewString(), content, author)
}

// ReplyWithID appends a reply under a caller-supplied id, used when ingesting
// replies from other collaborators. Duplicate reply ids are dropped.
func (s *CommentStore) ReplyWithID(commentID, replyID, content string, author Collaborator) (CommentReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[commentID]
	if !ok {
		return CommentReply{}, false
	}
	for _, r := range c.Replies {
		if r.ID == replyID {
			return r, true
		}
	}

	reply := CommentReply{
		ID:        replyID,
		Content:   content,
		Author:    author,
		CreatedAt: s.clock.Now(),
	}
	c.Replies = append(c.Replies, reply)
	c.UpdatedAt = reply.CreatedAt
	s.stats.RecordComments("reply")
	return reply, true
}

// Get returns a copy of the comment.
func (s *CommentStore) Get(commentID string) (Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[commentID]
	if !ok {
		return Comment{}, false
	}
	return cloneComment(c), true
}

// Active returns the unresolved comments, newest first.
func (s *CommentStore) Active() []Comment {
	return s.partition(false)
}

// Resolved returns the resolved comments, newest first.
func (s *CommentStore) Resolved() []Comment {
	return s.partition(true)
}

// Counts returns the number of active and resolved comments.
func (s *CommentStore) Counts() (active, resolved int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.byID {
		if c.Resolved {
			resolved++
		} else {
			active++
		}
	}
	return active, resolved
}

func (s *CommentStore) partition(resolved bool) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Comment, 0, len(s.byID))
	for _, c := range s.byID {
		if c.Resolved == resolved {
			out = append(out, cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneComment(c *Comment) Comment {
	out := *c
	if c.Replies != nil {
		out.Replies = make([]CommentReply, len(c.Replies))
		copy(out.Replies, c.Replies)
	}
	return out
}
