package syncer

import (
	"context"

	"github.com/featherdesk/notesync/internal/note"
	"github.com/featherdesk/notesync/internal/remotestore"
	"go.uber.org/zap"
)

const migratedConversationTitle = "Imported chat history"

// MigrateLocalData performs the one-shot, user-triggered push of all local
// data to the remote store. Every local note is upserted preserving its
// original timestamp as both created_at and updated_at; if local chat
// history exists, one remote conversation is created and every message is
// inserted in original order. The first failure aborts the operation and is
// returned to the caller; this is the one engine surface allowed to
// propagate a remote error. Writes already committed are not rolled back.
func (e *Engine) MigrateLocalData(ctx context.Context) error {
	owner, authenticated := e.currentOwner()
	if !authenticated {
		return newServiceError(opMigrate, "not_authenticated", ErrNotAuthenticated)
	}

	e.storeMu.Lock()
	notes, err := e.local.Notes()
	if err != nil {
		e.storeMu.Unlock()
		return newServiceError(opMigrate, "load_notes_failed", err)
	}
	history, err := e.local.ChatHistory()
	e.storeMu.Unlock()
	if err != nil {
		return newServiceError(opMigrate, "load_chat_history_failed", err)
	}

	for _, item := range notes {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err := e.remote.UpsertNote(callCtx, note.ToRemote(item, owner))
		cancel()
		if err != nil {
			e.setOnline(false)
			return newServiceError(opMigrate, "note_upsert_failed", err)
		}
	}

	if len(history) > 0 {
		conversationID, err := e.ids.NewID()
		if err != nil {
			return newServiceError(opMigrate, "id_generation_failed", err)
		}

		conversation := remotestore.Conversation{
			ID:        conversationID,
			UserID:    owner.String(),
			Title:     migratedConversationTitle,
			CreatedAt: e.clock().UTC(),
		}
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err = e.remote.InsertConversation(callCtx, conversation)
		cancel()
		if err != nil {
			e.setOnline(false)
			return newServiceError(opMigrate, "conversation_insert_failed", err)
		}

		messages := make([]remotestore.ConversationMessage, 0, len(history))
		for _, message := range history {
			messageID, err := e.ids.NewID()
			if err != nil {
				return newServiceError(opMigrate, "id_generation_failed", err)
			}
			messages = append(messages, remotestore.ConversationMessage{
				ID:             messageID,
				ConversationID: conversationID,
				UserID:         owner.String(),
				Role:           message.Role,
				Content:        message.Content,
				CreatedAt:      timeFromMillis(message.TimestampMS),
			})
		}

		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		err = e.remote.InsertMessages(callCtx, messages)
		cancel()
		if err != nil {
			e.setOnline(false)
			return newServiceError(opMigrate, "message_insert_failed", err)
		}
	}

	e.logger.Info("local data migrated to cloud",
		zap.String("user_id", owner.String()),
		zap.Int("notes", len(notes)),
		zap.Int("chat_messages", len(history)))
	return nil
}
