package sessionkit

import "time"

// Role is the access level a collaborator holds on a document. Roles are
// read-only context supplied by the caller; the session never mutates them.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// OutlineSection is one entry of a document's outline.
type OutlineSection struct {
	ID       string `json:"id"`
	Heading  string `json:"heading"`
	Position int    `json:"position"`
}

// Metadata holds derived document statistics, recomputed on every flush.
type Metadata struct {
	// WordCount is the number of words in the content payload.
	WordCount int `json:"word_count"`

	// ReadingTime is the estimated reading time in minutes,
	// ceil(words / 200).
	ReadingTime int `json:"reading_time"`

	// LastEditor is the display name of the collaborator whose flush
	// produced this metadata.
	LastEditor string `json:"last_editor"`
}

// Document is the in-memory representation of one editable document. It is
// exclusively owned by a single Session for the session's lifetime and
// persisted externally on flush.
type Document struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Content string           `json:"content"` // opaque rich-text payload
	Outline []OutlineSection `json:"outline,omitempty"`
	Meta    Metadata         `json:"meta"`

	// Version strictly increases by 1 on every successful flush.
	Version int64 `json:"version"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DraftSnapshot is a point-in-time copy of a document's content, stored in
// the draft cache keyed by document id for offline recovery.
type DraftSnapshot struct {
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewerThan reports whether the snapshot is strictly newer than the document.
// Only a strictly newer snapshot may be offered for recovery; anything else
// would clobber newer remote edits with stale offline data.
func (s DraftSnapshot) NewerThan(doc *Document) bool {
	return s.UpdatedAt.After(doc.UpdatedAt)
}

// Collaborator identifies one participant of a document session.
type Collaborator struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	IsActive    bool   `json:"is_active"`

	// Cursor is the collaborator's last-known cursor offset into the
	// content, nil when unknown.
	Cursor *int `json:"cursor,omitempty"`
}

// Comment is a position-anchored discussion item on a document. Comments are
// never physically deleted here; resolution is a soft, one-way state.
type Comment struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Author    Collaborator   `json:"author"`
	Position  int            `json:"position"` // anchor offset into content
	Resolved  bool           `json:"resolved"`
	Replies   []CommentReply `json:"replies,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CommentReply is an append-only child of a Comment, immutable once created.
type CommentReply struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Author    Collaborator `json:"author"`
	CreatedAt time.Time    `json:"created_at"`
}
