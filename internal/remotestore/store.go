// Package remotestore abstracts the remote tabular store holding synced
// notes and migrated chat history. Rows are owner-scoped; row-level
// ownership is enforced server-side and every statement here scopes by owner
// without re-verifying that policy.
package remotestore

import (
	"context"
	"errors"
	"time"

	"github.com/featherdesk/notesync/internal/note"
)

// ErrOwnershipConflict indicates an upsert matched a row owned by another
// user and was rejected.
var ErrOwnershipConflict = errors.New("remotestore: row owned by another user")

// Conversation is one remote chat conversation container created during
// migration.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

// ConversationMessage is one remote chat message row.
type ConversationMessage struct {
	ID             string
	ConversationID string
	UserID         string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Store is the remote surface consumed by the sync engine. Upserts are
// idempotent by note id and safe to retry; deletes are best-effort.
type Store interface {
	Ping(ctx context.Context) error
	UpsertNote(ctx context.Context, row note.RemoteNote) error
	QueryNotesSince(ctx context.Context, owner note.UserID, sinceMS int64) ([]note.RemoteNote, error)
	DeleteNote(ctx context.Context, noteID string, owner note.UserID) error
	InsertConversation(ctx context.Context, conversation Conversation) error
	InsertMessages(ctx context.Context, messages []ConversationMessage) error
}
