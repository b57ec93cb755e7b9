package sessionkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	sessErrors "github.com/draftpad/sessionkit/errors"
	"github.com/draftpad/sessionkit/logging"
	"github.com/draftpad/sessionkit/realtime"
)

// Session coordinates one open document editing session: debounced autosave
// with offline draft caching, collaborator presence, and comment threads.
//
// A Session exclusively owns its Document's in-memory representation.
// Flushes for the document are strictly serialized; presence and comment
// operations interleave freely with the flush pipeline and never block on it.
type Session struct {
	documentID string
	self       Collaborator
	persister  Persister
	cache      DraftCache
	channel    realtime.Channel
	editor     Editor

	opts    Options
	logger  *logging.Logger
	metrics MetricsCollector
	clk     clock.Clock

	presence *PresenceTracker
	comments *CommentStore
	sched    *autosaveScheduler

	mu          sync.Mutex
	flushDone   *sync.Cond
	state       State
	doc         *Document
	changeSeq   uint64 // bumped on every NotifyChange
	flushedSeq  uint64 // changeSeq captured by the last successful flush
	inFlight    bool
	lastSavedAt time.Time
	lastErr     error
	recovered   *DraftSnapshot
	subscribers []func(*FlushResult)
	cancelSub   context.CancelFunc
}

func newSession(documentID string, self Collaborator, persister Persister, cache DraftCache, channel realtime.Channel, editor Editor, opts Options) *Session {
	opts.setDefaults()

	s := &Session{
		documentID: documentID,
		self:       self,
		persister:  persister,
		cache:      cache,
		channel:    channel,
		editor:     editor,
		opts:       opts,
		logger:     opts.Logger.WithDocument(documentID),
		metrics:    opts.MetricsCollector,
		clk:        opts.Clock,
		state:      StateLoading,
	}
	s.flushDone = sync.NewCond(&s.mu)
	s.presence = NewPresenceTracker(opts.MetricsCollector)
	s.comments = NewCommentStore(opts.Clock, opts.MetricsCollector)
	s.sched = newAutosaveScheduler(opts.Clock, opts.DebounceInterval, opts.MaxWait(), func(trigger string) {
		// Timer callbacks must not block the clock; flush on its own
		// goroutine. A timer firing while a flush is in flight simply
		// returns; coalescing is handled at flush completion.
		go func() {
			_ = s.flush(context.Background(), trigger)
		}()
	})
	return s
}

// Load fetches the authoritative document, compares it against the draft
// cache, and readies the session. A cached snapshot strictly newer than the
// remote copy is offered through RecoverableDraft, never applied silently;
// a stale one is refreshed to mirror the authoritative copy.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateLoading {
		state := s.state
		s.mu.Unlock()
		return sessErrors.New(sessErrors.OpLoad, fmt.Errorf("session is %s, not loading", state))
	}
	s.mu.Unlock()

	doc, err := s.persister.Fetch(ctx, s.documentID)
	if err != nil {
		return sessErrors.NewStorageError(sessErrors.OpLoad, err)
	}

	var recovered *DraftSnapshot
	if s.cache != nil {
		snap, ok, cacheErr := s.cache.Load(ctx, s.documentID)
		switch {
		case cacheErr != nil:
			// Recovery is degraded but editing continues.
			s.metrics.RecordCacheOutcome("load", false)
			s.logger.Warn("draft cache unavailable on load", slog.String("error", cacheErr.Error()))
		case ok && snap.NewerThan(doc):
			s.metrics.RecordCacheOutcome("load", true)
			recovered = &snap
		case ok:
			// Stale snapshot: newest wins, refresh the cache from remote.
			s.metrics.RecordCacheOutcome("load", true)
			refreshed := DraftSnapshot{
				DocumentID: doc.ID,
				Content:    doc.Content,
				Version:    doc.Version,
				UpdatedAt:  doc.UpdatedAt,
			}
			if saveErr := s.cache.Save(ctx, refreshed); saveErr != nil {
				s.metrics.RecordCacheOutcome("save", false)
				s.logger.Warn("draft cache refresh failed", slog.String("error", saveErr.Error()))
			}
		}
	}

	if s.editor != nil {
		s.editor.OnUpdate(s.NotifyChange)
	}

	if s.channel != nil {
		subCtx, cancel := context.WithCancel(context.Background())
		if subErr := s.channel.Subscribe(subCtx, s.documentID, s.handleRealtimeEvent); subErr != nil {
			cancel()
			// Collaboration is unavailable; the session still works solo.
			s.logger.Warn("realtime subscription failed", slog.String("error", subErr.Error()))
		} else {
			s.cancelSub = cancel
			s.publish(realtime.EventJoin, realtime.JoinPayload{
				DisplayName: s.self.DisplayName,
				Email:       s.self.Email,
				Role:        string(s.self.Role),
			})
		}
	}
	s.presence.Join(s.self)

	s.mu.Lock()
	s.doc = doc
	s.recovered = recovered
	s.state = StateReady
	s.mu.Unlock()

	s.logger.Info("session ready",
		slog.Int64("version", doc.Version),
		slog.Bool("recoverable_draft", recovered != nil))
	return nil
}

// NotifyChange marks the session dirty and (re)arms the autosave debounce.
// Call it whenever the editor content differs from the last flushed content.
// It is a no-op before Load completes and after Close.
func (s *Session) NotifyChange() {
	s.mu.Lock()
	if s.state == StateLoading || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.changeSeq++
	if s.state == StateReady {
		s.state = StateDirty
	}
	s.mu.Unlock()

	s.sched.NoteChange()
}

// Save bypasses the debounce and flushes immediately. If a flush is already
// running it waits for it rather than racing, then flushes again only if
// changes remain.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return sessErrors.New(sessErrors.OpSave, fmt.Errorf("session is closed"))
	}
	s.mu.Unlock()

	return s.flush(ctx, TriggerManual)
}

// Close tears the session down: one final bounded best-effort flush, a leave
// announcement on the realtime channel, and timer cleanup. Close never blocks
// indefinitely and never fails because the final flush did; the draft cache
// keeps the latest snapshot either way.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	loading := s.state == StateLoading
	s.mu.Unlock()

	s.sched.Stop()

	if !loading {
		flushCtx, cancel := context.WithTimeout(ctx, s.opts.CloseTimeout)
		if err := s.flush(flushCtx, TriggerClose); err != nil {
			s.logger.Warn("final flush failed on close", slog.String("error", err.Error()))
		}
		cancel()

		s.publish(realtime.EventLeave, nil)
	}

	s.presence.Leave(s.self.ID)
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}

	s.mu.Lock()
	s.state = StateClosed
	s.flushDone.Broadcast()
	s.mu.Unlock()

	s.logger.Info("session closed")
	return nil
}

// flush serializes the current content plus recomputed metadata, writes an
// optimistic snapshot to the draft cache, and persists with an incremented
// version. At most one flush is in flight per session; a change arriving
// mid-flush triggers exactly one coalesced follow-up.
func (s *Session) flush(ctx context.Context, trigger string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}

	if trigger == TriggerManual || trigger == TriggerClose {
		// Manual and teardown flushes wait for the in-flight one. The
		// wait is bounded because every persist attempt carries
		// FlushTimeout.
		for s.inFlight && s.state != StateClosed {
			s.flushDone.Wait()
		}
		if s.state == StateClosed {
			s.mu.Unlock()
			return nil
		}
	} else if s.inFlight {
		s.mu.Unlock()
		return nil
	}

	if s.changeSeq == s.flushedSeq {
		// Not dirty: no-op.
		s.mu.Unlock()
		return nil
	}

	s.inFlight = true
	seq := s.changeSeq
	base := *s.doc
	s.state = StateFlushing
	s.mu.Unlock()

	start := s.clk.Now()
	content := s.editor.Content()
	meta := ComputeMetadata(content, s.self.DisplayName)
	now := s.clk.Now()

	result := &FlushResult{
		DocumentID:  s.documentID,
		Version:     base.Version + 1,
		WordCount:   meta.WordCount,
		ReadingTime: meta.ReadingTime,
		Trigger:     trigger,
		StartTime:   start,
	}

	// Optimistic snapshot first: even a failed persist leaves the latest
	// content recoverable locally. Cache errors are swallowed.
	if s.cache != nil {
		snapshot := DraftSnapshot{
			DocumentID: s.documentID,
			Content:    content,
			Version:    base.Version,
			UpdatedAt:  now,
		}
		if err := s.cache.Save(ctx, snapshot); err != nil {
			s.metrics.RecordCacheOutcome("save", false)
			s.logger.Warn("draft cache save failed", slog.String("error", err.Error()))
		} else {
			s.metrics.RecordCacheOutcome("save", true)
			result.CacheSaved = true
		}
	}

	next := base
	next.Content = content
	next.Meta = meta
	next.Version = base.Version + 1
	next.UpdatedAt = now

	persistCtx, cancel := context.WithTimeout(ctx, s.opts.FlushTimeout)
	persistErr := s.persister.Persist(persistCtx, &next)
	cancel()

	var flushErr error
	followUp := false

	s.mu.Lock()
	s.inFlight = false
	if persistErr != nil {
		flushErr = sessErrors.NewStorageError(sessErrors.OpFlush, persistErr)
		s.lastErr = flushErr
		if s.state != StateClosed {
			s.state = StateDirty
		}
		// The dirty flag stays set; retry on the next tick or manual save.
		s.sched.ArmRetry()
	} else {
		s.doc = &next
		s.flushedSeq = seq
		s.lastSavedAt = now
		s.lastErr = nil
		if s.state != StateClosed {
			if s.changeSeq != seq {
				// New changes arrived mid-flush: stay dirty and run
				// exactly one follow-up.
				s.state = StateDirty
				followUp = trigger != TriggerClose
			} else {
				s.state = StateReady
				s.sched.Clear()
			}
		}
	}
	s.flushDone.Broadcast()
	s.mu.Unlock()

	result.Err = flushErr
	result.Duration = s.clk.Now().Sub(start)
	s.metrics.RecordFlushDuration(trigger, result.Duration)
	if flushErr != nil {
		s.metrics.RecordFlushErrors(trigger, "persist_failure")
		s.logger.LogError(context.Background(), flushErr, "could not sync document",
			slog.String("trigger", trigger),
			slog.Bool("cache_saved", result.CacheSaved))
	} else {
		s.logger.Debug("document flushed",
			slog.String("trigger", trigger),
			slog.Int64("version", result.Version),
			slog.Int("word_count", result.WordCount))
	}
	s.notifySubscribers(result)

	if followUp {
		go func() {
			_ = s.flush(context.Background(), TriggerCoalesced)
		}()
	}
	return flushErr
}

// Subscribe registers a handler invoked after every flush attempt. Handlers
// run on their own goroutines; a panicking handler does not disturb the
// session.
func (s *Session) Subscribe(handler func(*FlushResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, handler)
}

func (s *Session) notifySubscribers(result *FlushResult) {
	s.mu.Lock()
	subscribers := make([]func(*FlushResult), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, handler := range subscribers {
		go func(h func(*FlushResult)) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("flush subscriber panicked", slog.Any("panic", r))
				}
			}()
			h(result)
		}(handler)
	}
}

// UpdateCursor records the local collaborator's cursor offset and announces
// it over the realtime channel, fire-and-forget.
func (s *Session) UpdateCursor(position int) {
	s.presence.UpdateCursor(s.self.ID, position)
	s.publish(realtime.EventCursor, realtime.CursorPayload{Position: position})
}

// AddComment creates a comment anchored at position, authored by the local
// collaborator, and announces it.
func (s *Session) AddComment(content string, position int) Comment {
	c := s.comments.Add(content, position, s.self)
	s.publish(realtime.EventCommentAdd, realtime.CommentPayload{
		CommentID:   c.ID,
		Content:     content,
		Position:    position,
		DisplayName: s.self.DisplayName,
	})
	return c
}

// ResolveComment marks a comment resolved. Unknown ids are a no-op.
func (s *Session) ResolveComment(commentID string) {
	s.comments.Resolve(commentID)
	s.publish(realtime.EventCommentResolve, realtime.ResolvePayload{CommentID: commentID})
}

// ReplyToComment appends a reply authored by the local collaborator.
// Unknown comment ids are a no-op returning ok=false.
func (s *Session) ReplyToComment(commentID, content string) (CommentReply, bool) {
	reply, ok := s.comments.Reply(commentID, content, s.self)
	if ok {
		s.publish(realtime.EventCommentReply, realtime.ReplyPayload{
			CommentID:   commentID,
			ReplyID:     reply.ID,
			Content:     content,
			DisplayName: s.self.DisplayName,
		})
	}
	return reply, ok
}

func (s *Session) publish(eventType string, payload interface{}) {
	if s.channel == nil {
		return
	}
	ev, err := realtime.NewEvent(eventType, s.documentID, s.self.ID, payload)
	if err != nil {
		s.logger.Warn("event payload marshal failed", slog.String("type", eventType))
		return
	}
	if err := s.channel.Publish(context.Background(), ev); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
	}
}

// handleRealtimeEvent ingests collaborator activity from the channel. Events
// echoing the local collaborator are ignored.
func (s *Session) handleRealtimeEvent(ev realtime.Event) error {
	if ev.UserID == s.self.ID {
		return nil
	}

	switch ev.Type {
	case realtime.EventJoin:
		var p realtime.JoinPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return sessErrors.NewWithComponent(sessErrors.OpJoin, "channel", err)
		}
		s.presence.Join(Collaborator{
			ID:          ev.UserID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			Role:        Role(p.Role),
		})

	case realtime.EventLeave:
		s.presence.Leave(ev.UserID)

	case realtime.EventCursor:
		var p realtime.CursorPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return sessErrors.NewWithComponent(sessErrors.OpJoin, "channel", err)
		}
		// A cursor from an unseen collaborator means their join predates
		// our subscription; register them from the activity itself.
		if _, known := s.presence.Get(ev.UserID); !known {
			s.presence.Join(Collaborator{ID: ev.UserID})
		}
		s.presence.UpdateCursor(ev.UserID, p.Position)

	case realtime.EventCommentAdd:
		var p realtime.CommentPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return sessErrors.NewWithComponent(sessErrors.OpComment, "channel", err)
		}
		s.comments.AddWithID(p.CommentID, p.Content, p.Position, s.collaboratorFor(ev.UserID, p.DisplayName))

	case realtime.EventCommentResolve:
		var p realtime.ResolvePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return sessErrors.NewWithComponent(sessErrors.OpComment, "channel", err)
		}
		s.comments.Resolve(p.CommentID)

	case realtime.EventCommentReply:
		var p realtime.ReplyPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return sessErrors.NewWithComponent(sessErrors.OpComment, "channel", err)
		}
		s.comments.ReplyWithID(p.CommentID, p.ReplyID, p.Content, s.collaboratorFor(ev.UserID, p.DisplayName))
	}
	return nil
}

// collaboratorFor resolves a remote author, preferring the presence record
// when the collaborator is known.
func (s *Session) collaboratorFor(userID, displayName string) Collaborator {
	if c, ok := s.presence.Get(userID); ok {
		return c
	}
	return Collaborator{ID: userID, DisplayName: displayName}
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns a copy of the session's current document. Content reflects
// the last successful flush, not unflushed editor changes.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return Document{ID: s.documentID}
	}
	doc := *s.doc
	if s.doc.Outline != nil {
		doc.Outline = make([]OutlineSection, len(s.doc.Outline))
		copy(doc.Outline, s.doc.Outline)
	}
	return doc
}

// RecoverableDraft returns the cached snapshot offered for recovery, if any.
// The session never applies it itself; the caller decides, feeds it to the
// editor, and calls NotifyChange.
func (s *Session) RecoverableDraft() (DraftSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recovered == nil {
		return DraftSnapshot{}, false
	}
	return *s.recovered, true
}

// DiscardRecoverableDraft drops the recovery offer.
func (s *Session) DiscardRecoverableDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovered = nil
}

// LastSavedAt returns the time of the last successful flush, zero if none.
func (s *Session) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// LastError returns the most recent flush error, nil after a success.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Self returns the local collaborator.
func (s *Session) Self() Collaborator {
	return s.self
}

// Presence returns the session's presence tracker.
func (s *Session) Presence() *PresenceTracker {
	return s.presence
}

// Comments returns the session's comment store.
func (s *Session) Comments() *CommentStore {
	return s.comments
}
