// Package sessionkit coordinates the lifecycle of one open document editing
// session: debounced autosave with offline-safe draft caching, collaborator
// presence, and position-anchored comment threads.
//
// The package is an in-process library consumed by a UI layer. It does not
// interpret the document payload, render anything, or merge concurrent edits;
// conflict resolution between collaborators is delegated to the editing
// surface that feeds it.
package sessionkit

import (
	"context"
	"time"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateLoading: fetching the document and checking the draft cache.
	StateLoading State = iota

	// StateReady: clean, no pending writes.
	StateReady

	// StateDirty: at least one unflushed change exists.
	StateDirty

	// StateFlushing: exactly one flush in progress.
	StateFlushing

	// StateClosed: terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDirty:
		return "dirty"
	case StateFlushing:
		return "flushing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Flush trigger labels, reported in FlushResult and metrics.
const (
	TriggerDebounce  = "debounce"
	TriggerMaxWait   = "max_wait"
	TriggerManual    = "manual"
	TriggerCoalesced = "coalesced"
	TriggerClose     = "close"
)

// Persister is the external persistence service for documents. It is assumed
// to reject a document whose version was already persisted by someone else;
// the session does not handle that conflict beyond leaving the dirty flag set.
type Persister interface {
	// Fetch loads the authoritative copy of a document.
	Fetch(ctx context.Context, documentID string) (*Document, error)

	// Persist durably stores the document at its (already incremented)
	// version.
	Persist(ctx context.Context, doc *Document) error
}

// DraftCache is a best-effort local snapshot store, one entry per document id,
// overwritten on each flush. Implementations may lose entries at any time;
// every failure is non-fatal to the session.
type DraftCache interface {
	// Save overwrites the snapshot for its document id. Idempotent.
	Save(ctx context.Context, snapshot DraftSnapshot) error

	// Load returns the snapshot for the document id, or ok=false when
	// absent.
	Load(ctx context.Context, documentID string) (DraftSnapshot, bool, error)
}

// Editor is the opaque rich-text editing surface. The session never inspects
// the payload's internal structure; it only reads the current content at
// flush time and listens for mutation notifications.
type Editor interface {
	// Content returns the current opaque content payload.
	Content() string

	// Selection returns the current cursor offset into the content.
	Selection() int

	// OnUpdate registers fn to be called on every content mutation.
	OnUpdate(fn func())
}

// FlushResult describes one completed flush attempt. It is passed to
// subscribers and never blocks the editing session, whatever its Err.
type FlushResult struct {
	// DocumentID of the flushed document.
	DocumentID string

	// Version the flush produced (or attempted to produce).
	Version int64

	// WordCount and ReadingTime recomputed for this flush.
	WordCount   int
	ReadingTime int

	// Trigger that initiated the flush (debounce, max_wait, manual,
	// coalesced, close).
	Trigger string

	// CacheSaved reports whether the optimistic draft snapshot reached the
	// cache before the persist attempt.
	CacheSaved bool

	// Err is non-nil when the persist attempt failed; the session stays
	// dirty and retries on the next timer tick or manual save.
	Err error

	// StartTime is when the flush began.
	StartTime time.Time

	// Duration is how long the flush took.
	Duration time.Duration
}
