package sessionkit

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/draftpad/sessionkit/logging"
	"github.com/draftpad/sessionkit/realtime"
)

// SessionBuilder provides a fluent interface for constructing Session instances.
type SessionBuilder struct {
	documentID string
	self       Collaborator
	persister  Persister
	cache      DraftCache
	channel    realtime.Channel
	editor     Editor
	opts       Options
}

// NewSessionBuilder creates a new builder with default options.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		opts: DefaultOptions(),
	}
}

// WithDocument sets the document the session will coordinate.
func (b *SessionBuilder) WithDocument(documentID string) *SessionBuilder {
	b.documentID = documentID
	return b
}

// WithCollaborator sets the local collaborator identity.
func (b *SessionBuilder) WithCollaborator(self Collaborator) *SessionBuilder {
	b.self = self
	return b
}

// WithPersister sets the authoritative document store.
func (b *SessionBuilder) WithPersister(persister Persister) *SessionBuilder {
	b.persister = persister
	return b
}

// WithDraftCache sets the local draft cache. Optional; without one the
// session still autosaves but offers no offline recovery.
func (b *SessionBuilder) WithDraftCache(cache DraftCache) *SessionBuilder {
	b.cache = cache
	return b
}

// WithChannel sets the realtime channel for presence and comment events.
// Optional; without one the session runs solo.
func (b *SessionBuilder) WithChannel(channel realtime.Channel) *SessionBuilder {
	b.channel = channel
	return b
}

// WithEditor binds the editor surface the session reads content from.
func (b *SessionBuilder) WithEditor(editor Editor) *SessionBuilder {
	b.editor = editor
	return b
}

// WithDebounceInterval sets the trailing autosave debounce.
func (b *SessionBuilder) WithDebounceInterval(interval time.Duration) *SessionBuilder {
	b.opts.DebounceInterval = interval
	return b
}

// WithMaxWaitMultiplier sets the autosave ceiling as a multiple of the
// debounce interval.
func (b *SessionBuilder) WithMaxWaitMultiplier(multiplier int) *SessionBuilder {
	b.opts.MaxWaitMultiplier = multiplier
	return b
}

// WithFlushTimeout sets the maximum duration for a single persist attempt.
func (b *SessionBuilder) WithFlushTimeout(timeout time.Duration) *SessionBuilder {
	b.opts.FlushTimeout = timeout
	return b
}

// WithCloseTimeout sets the bound on the final flush during Close.
func (b *SessionBuilder) WithCloseTimeout(timeout time.Duration) *SessionBuilder {
	b.opts.CloseTimeout = timeout
	return b
}

// WithLogger sets the structured logger.
func (b *SessionBuilder) WithLogger(logger *logging.Logger) *SessionBuilder {
	b.opts.Logger = logger
	return b
}

// WithMetricsCollector sets the metrics sink.
func (b *SessionBuilder) WithMetricsCollector(collector MetricsCollector) *SessionBuilder {
	b.opts.MetricsCollector = collector
	return b
}

// WithClock sets the clock used for timers and timestamps. Tests inject a
// mock clock here.
func (b *SessionBuilder) WithClock(clk clock.Clock) *SessionBuilder {
	b.opts.Clock = clk
	return b
}

// WithOptions replaces the builder's options wholesale.
func (b *SessionBuilder) WithOptions(opts Options) *SessionBuilder {
	b.opts = opts
	return b
}

// Build creates a new Session with the configured components. The session is
// in the loading state; call Load to ready it.
func (b *SessionBuilder) Build() (*Session, error) {
	if b.documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	if b.persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	if b.editor == nil {
		return nil, fmt.Errorf("editor is required")
	}
	if b.self.ID == "" {
		return nil, fmt.Errorf("collaborator identity is required")
	}
	if b.opts.DebounceInterval < 0 {
		return nil, fmt.Errorf("debounce interval must not be negative, got %s", b.opts.DebounceInterval)
	}
	if b.opts.MaxWaitMultiplier == 1 {
		return nil, fmt.Errorf("max wait multiplier of 1 would preempt every debounce")
	}

	return newSession(b.documentID, b.self, b.persister, b.cache, b.channel, b.editor, b.opts), nil
}

// Reset clears the builder, allowing reuse.
func (b *SessionBuilder) Reset() *SessionBuilder {
	*b = SessionBuilder{opts: DefaultOptions()}
	return b
}
