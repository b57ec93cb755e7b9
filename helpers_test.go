package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockPersister is an in-memory Persister with togglable failure.
type mockPersister struct {
	mu       sync.Mutex
	doc      *Document
	persists []Document
	fetchErr error
	failWith error
}

func newMockPersister(doc *Document) *mockPersister {
	return &mockPersister{doc: doc}
}

func (m *mockPersister) Fetch(ctx context.Context, documentID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.doc == nil || m.doc.ID != documentID {
		return nil, fmt.Errorf("document %s not found", documentID)
	}
	doc := *m.doc
	return &doc, nil
}

func (m *mockPersister) Persist(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	stored := *doc
	m.doc = &stored
	m.persists = append(m.persists, stored)
	return nil
}

func (m *mockPersister) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *mockPersister) persistCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persists)
}

func (m *mockPersister) lastPersisted() (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.persists) == 0 {
		return Document{}, false
	}
	return m.persists[len(m.persists)-1], true
}

// mockDraftCache is an in-memory DraftCache with togglable failure.
type mockDraftCache struct {
	mu       sync.Mutex
	byDoc    map[string]DraftSnapshot
	saves    int
	failWith error
}

func newMockDraftCache() *mockDraftCache {
	return &mockDraftCache{byDoc: make(map[string]DraftSnapshot)}
}

func (m *mockDraftCache) Save(ctx context.Context, snapshot DraftSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.byDoc[snapshot.DocumentID] = snapshot
	m.saves++
	return nil
}

func (m *mockDraftCache) Load(ctx context.Context, documentID string) (DraftSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return DraftSnapshot{}, false, m.failWith
	}
	snap, ok := m.byDoc[documentID]
	return snap, ok, nil
}

func (m *mockDraftCache) get(documentID string) (DraftSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.byDoc[documentID]
	return snap, ok
}

// fakeEditor simulates the editing surface: tests set its content and invoke
// Type to mimic a keystroke.
type fakeEditor struct {
	mu       sync.Mutex
	content  string
	cursor   int
	onUpdate func()
}

func (e *fakeEditor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

func (e *fakeEditor) Selection() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *fakeEditor) OnUpdate(fn func()) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

func (e *fakeEditor) Type(content string) {
	e.mu.Lock()
	e.content = content
	fn := e.onUpdate
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// recordingMetrics captures collector calls for assertions.
type recordingMetrics struct {
	mu          sync.Mutex
	flushes     []string
	flushErrors []string
	cacheOps    []string
	presence    []int
	commentOps  []string
}

func (r *recordingMetrics) RecordFlushDuration(trigger string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, trigger)
}

func (r *recordingMetrics) RecordFlushErrors(trigger, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushErrors = append(r.flushErrors, trigger+":"+reason)
}

func (r *recordingMetrics) RecordCacheOutcome(op string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheOps = append(r.cacheOps, fmt.Sprintf("%s:%t", op, ok))
}

func (r *recordingMetrics) RecordPresence(active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = append(r.presence, active)
}

func (r *recordingMetrics) RecordComments(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commentOps = append(r.commentOps, op)
}

func (r *recordingMetrics) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushes)
}

// waitFor polls cond until it holds or the deadline passes. Timer-triggered
// flushes complete on background goroutines, so assertions about their
// effects need to poll.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

var errPersistDown = errors.New("persistence service unavailable")

func testDocument(id string) *Document {
	return &Document{
		ID:        id,
		Title:     "Q3 Launch Plan",
		Content:   "<p>hello world</p>",
		Version:   4,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testCollaborator(id string) Collaborator {
	return Collaborator{
		ID:          id,
		DisplayName: "User " + id,
		Email:       id + "@example.com",
		Role:        RoleEditor,
	}
}
