// Package localstore owns the on-disk local representation of notes, the
// pending-write queue, the sync checkpoint, and local chat history. All
// operations are synchronous key-value reads and writes; the sync engine
// treats durability as this package's concern.
package localstore

import (
	"encoding/json"
	"fmt"

	"github.com/featherdesk/notesync/internal/chat"
	"github.com/featherdesk/notesync/internal/note"
)

// Keys under which the engine's durable state lives.
const (
	keyNotes       = "notes"
	keyPending     = "pending_notes"
	keyCheckpoint  = "sync_checkpoint"
	keyChatHistory = "chat_history"
)

// Store is the persistence surface consumed by the sync engine.
type Store interface {
	Notes() ([]note.Note, error)
	SetNotes(notes []note.Note) error
	Pending() ([]note.Note, error)
	SetPending(pending []note.Note) error
	Checkpoint() (int64, error)
	SetCheckpoint(checkpointMS int64) error
	ChatHistory() ([]chat.Message, error)
	SetChatHistory(messages []chat.Message) error
}

// backend is the raw key-value surface a concrete store provides.
type backend interface {
	load(key string) (value string, found bool, err error)
	save(key string, value string) error
}

// kvStore layers the typed Store operations over a raw backend with JSON
// encoded values.
type kvStore struct {
	kv backend
}

func (s kvStore) Notes() ([]note.Note, error) {
	return loadNoteList(s.kv, keyNotes)
}

func (s kvStore) SetNotes(notes []note.Note) error {
	return saveJSON(s.kv, keyNotes, notes)
}

func (s kvStore) Pending() ([]note.Note, error) {
	return loadNoteList(s.kv, keyPending)
}

func (s kvStore) SetPending(pending []note.Note) error {
	return saveJSON(s.kv, keyPending, pending)
}

func (s kvStore) Checkpoint() (int64, error) {
	raw, found, err := s.kv.load(keyCheckpoint)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	var checkpoint int64
	if err := json.Unmarshal([]byte(raw), &checkpoint); err != nil {
		return 0, fmt.Errorf("localstore: decode %s: %w", keyCheckpoint, err)
	}
	return checkpoint, nil
}

func (s kvStore) SetCheckpoint(checkpointMS int64) error {
	return saveJSON(s.kv, keyCheckpoint, checkpointMS)
}

func (s kvStore) ChatHistory() ([]chat.Message, error) {
	raw, found, err := s.kv.load(keyChatHistory)
	if err != nil {
		return nil, err
	}
	if !found {
		return []chat.Message{}, nil
	}
	var messages []chat.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", keyChatHistory, err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

func (s kvStore) SetChatHistory(messages []chat.Message) error {
	return saveJSON(s.kv, keyChatHistory, messages)
}

func loadNoteList(kv backend, key string) ([]note.Note, error) {
	raw, found, err := kv.load(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return []note.Note{}, nil
	}
	var notes []note.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", key, err)
	}
	if notes == nil {
		notes = []note.Note{}
	}
	return notes, nil
}

func saveJSON(kv backend, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", key, err)
	}
	return kv.save(key, string(encoded))
}
