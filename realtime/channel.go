// Package realtime defines the collaboration channel boundary for document
// sessions. A Channel delivers collaborator join/leave and cursor updates plus
// comment events between the participants of one document, without imposing a
// transport: implementations range from an in-process hub (MemoryHub) to a
// websocket client (WSChannel).
package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// Event type constants, one per collaboration message kind.
const (
	EventJoin          = "JOIN"            // A collaborator opened the document
	EventLeave         = "LEAVE"           // A collaborator closed the document
	EventCursor        = "CURSOR"          // A collaborator moved their cursor
	EventCommentAdd    = "COMMENT"         // New comment added
	EventCommentReply  = "COMMENT_REPLY"   // Reply appended to a comment
	EventCommentResolve = "COMMENT_RESOLVE" // Comment marked resolved
)

// Event is a single collaboration message scoped to one document.
type Event struct {
	Type       string          `json:"type"`
	DocumentID string          `json:"document_id"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// JoinPayload carries the collaborator identity announced on join.
type JoinPayload struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// CursorPayload carries a collaborator's cursor offset. Last write wins.
type CursorPayload struct {
	Position int `json:"position"`
}

// CommentPayload carries a newly created comment.
type CommentPayload struct {
	CommentID   string `json:"comment_id"`
	Content     string `json:"content"`
	Position    int    `json:"position"`
	DisplayName string `json:"display_name"`
}

// ReplyPayload carries a reply appended to an existing comment.
type ReplyPayload struct {
	CommentID   string `json:"comment_id"`
	ReplyID     string `json:"reply_id"`
	Content     string `json:"content"`
	DisplayName string `json:"display_name"`
}

// ResolvePayload identifies the comment being resolved.
type ResolvePayload struct {
	CommentID string `json:"comment_id"`
}

// Handler processes incoming collaboration events.
type Handler func(event Event) error

// Channel delivers collaboration events for documents.
// Delivery is fire-and-forget: no ordering guarantee is offered beyond
// last-write-wins per collaborator, and publishing never blocks on slow peers.
type Channel interface {
	// Subscribe starts delivering events for the given document to handler.
	// The subscription ends when ctx is cancelled or the channel is closed.
	Subscribe(ctx context.Context, documentID string, handler Handler) error

	// Publish sends an event to the other participants of the document.
	Publish(ctx context.Context, event Event) error

	// IsConnected returns true if the channel can currently deliver events.
	IsConnected() bool

	// Close shuts the channel down and ends all subscriptions.
	Close() error
}

// NewEvent builds an event with the timestamp set and the payload marshalled.
// A nil payload produces an event without one.
func NewEvent(eventType, documentID, userID string, payload interface{}) (Event, error) {
	ev := Event{
		Type:       eventType,
		DocumentID: documentID,
		UserID:     userID,
		Timestamp:  time.Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = data
	}
	return ev, nil
}
