package remotestore

import (
	"context"
	"fmt"
	"time"

	"github.com/featherdesk/notesync/internal/note"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store over an owner-scoped Postgres schema. The schema
// (notes, conversations, messages) pre-exists; this client never migrates it.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool for the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("remotestore: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("remotestore: open pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping verifies connectivity with a lightweight round trip.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// UpsertNote inserts or updates a note by primary key. A conflicting row
// owned by another user leaves the table untouched and yields
// ErrOwnershipConflict.
func (p *Postgres) UpsertNote(ctx context.Context, row note.RemoteNote) error {
	const query = `
		INSERT INTO notes (id, user_id, content, title, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			title = EXCLUDED.title,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at
			WHERE notes.user_id = EXCLUDED.user_id;
	`
	tag, err := p.pool.Exec(ctx, query,
		row.ID, row.UserID, row.Content, row.Title, row.Tags, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("remotestore: upsert note: %w", err)
	}
	switch tag.RowsAffected() {
	case 1:
		return nil
	case 0:
		return ErrOwnershipConflict
	default:
		return fmt.Errorf("remotestore: unexpected rows affected: %d", tag.RowsAffected())
	}
}

// QueryNotesSince returns every note owned by owner whose updated_at is at
// or after sinceMS, newest first.
func (p *Postgres) QueryNotesSince(ctx context.Context, owner note.UserID, sinceMS int64) ([]note.RemoteNote, error) {
	const query = `
		SELECT id, user_id, content, COALESCE(title, ''), COALESCE(tags, '{}'), created_at, updated_at
		FROM notes
		WHERE user_id = $1 AND updated_at >= $2
		ORDER BY updated_at DESC;
	`
	rows, err := p.pool.Query(ctx, query, owner.String(), time.UnixMilli(sinceMS).UTC())
	if err != nil {
		return nil, fmt.Errorf("remotestore: query notes: %w", err)
	}
	defer rows.Close()

	var result []note.RemoteNote
	for rows.Next() {
		var item note.RemoteNote
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Content, &item.Title, &item.Tags,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("remotestore: scan note: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remotestore: iterate notes: %w", err)
	}
	return result, nil
}

// DeleteNote removes one note scoped to (id, owner). Deleting an absent row
// is not an error.
func (p *Postgres) DeleteNote(ctx context.Context, noteID string, owner note.UserID) error {
	const query = `DELETE FROM notes WHERE id = $1 AND user_id = $2;`
	if _, err := p.pool.Exec(ctx, query, noteID, owner.String()); err != nil {
		return fmt.Errorf("remotestore: delete note: %w", err)
	}
	return nil
}

// InsertConversation creates one conversation container row.
func (p *Postgres) InsertConversation(ctx context.Context, conversation Conversation) error {
	const query = `
		INSERT INTO conversations (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4);
	`
	if _, err := p.pool.Exec(ctx, query,
		conversation.ID, conversation.UserID, conversation.Title, conversation.CreatedAt); err != nil {
		return fmt.Errorf("remotestore: insert conversation: %w", err)
	}
	return nil
}

// InsertMessages appends message rows in the order given, as one batch.
func (p *Postgres) InsertMessages(ctx context.Context, messages []ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	const query = `
		INSERT INTO messages (id, conversation_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	batch := &pgx.Batch{}
	for _, message := range messages {
		batch.Queue(query,
			message.ID, message.ConversationID, message.UserID,
			message.Role, message.Content, message.CreatedAt)
	}
	results := p.pool.SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck
	for range messages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("remotestore: insert message: %w", err)
		}
	}
	return results.Close()
}
