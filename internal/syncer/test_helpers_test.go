package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/featherdesk/notesync/internal/identity"
	"github.com/featherdesk/notesync/internal/localstore"
	"github.com/featherdesk/notesync/internal/note"
	"github.com/featherdesk/notesync/internal/remotestore"
)

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("generated-%d", p.next), nil
}

// testClock is a mutable wall clock shared by a test and its engine.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(ms int64) *testClock {
	return &testClock{now: time.UnixMilli(ms).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) SetMillis(ms int64) {
	c.mu.Lock()
	c.now = time.UnixMilli(ms).UTC()
	c.mu.Unlock()
}

// fakeRemote scripts remote behavior per call and records every mutation.
type fakeRemote struct {
	mu sync.Mutex

	pingErr      error
	failUpsertID string
	upsertErr    error
	queryRows    []note.RemoteNote
	queryErr     error
	deleteErr    error
	convErr      error
	messagesErr  error

	stored        map[string]note.RemoteNote
	upsertOrder   []string
	querySinceMS  []int64
	deletedIDs    []string
	conversations []remotestore.Conversation
	messages      []remotestore.ConversationMessage
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{stored: make(map[string]note.RemoteNote)}
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) UpsertNote(ctx context.Context, row note.RemoteNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.failUpsertID != "" && row.ID == f.failUpsertID {
		return fmt.Errorf("scripted upsert failure for %s", row.ID)
	}
	f.stored[row.ID] = row
	f.upsertOrder = append(f.upsertOrder, row.ID)
	return nil
}

func (f *fakeRemote) QueryNotesSince(ctx context.Context, owner note.UserID, sinceMS int64) ([]note.RemoteNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.querySinceMS = append(f.querySinceMS, sinceMS)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]note.RemoteNote(nil), f.queryRows...), nil
}

func (f *fakeRemote) DeleteNote(ctx context.Context, noteID string, owner note.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.stored, noteID)
	f.deletedIDs = append(f.deletedIDs, noteID)
	return nil
}

func (f *fakeRemote) InsertConversation(ctx context.Context, conversation remotestore.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convErr != nil {
		return f.convErr
	}
	f.conversations = append(f.conversations, conversation)
	return nil
}

func (f *fakeRemote) InsertMessages(ctx context.Context, messages []remotestore.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return f.messagesErr
	}
	f.messages = append(f.messages, messages...)
	return nil
}

func (f *fakeRemote) storedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.stored))
	for id := range f.stored {
		ids = append(ids, id)
	}
	return ids
}

func newTestEngine(t *testing.T, local localstore.Store, remote remotestore.Store, clock *testClock) *Engine {
	t.Helper()
	normalizer, err := identity.NewNormalizer(identity.NormalizerConfig{IDProvider: &sequenceIDProvider{}})
	if err != nil {
		t.Fatalf("unexpected normalizer error: %v", err)
	}
	engine, err := NewEngine(EngineConfig{
		Local:      local,
		Remote:     remote,
		Normalizer: normalizer,
		IDProvider: &sequenceIDProvider{},
		Clock:      clock.Now,
	})
	if err != nil {
		t.Fatalf("unexpected engine error: %v", err)
	}
	return engine
}

func mustSetUser(t *testing.T, engine *Engine, userID string) {
	t.Helper()
	if err := engine.SetUser(userID); err != nil {
		t.Fatalf("unexpected set user error: %v", err)
	}
}

func mustPending(t *testing.T, store localstore.Store) []note.Note {
	t.Helper()
	pending, err := store.Pending()
	if err != nil {
		t.Fatalf("unexpected pending error: %v", err)
	}
	return pending
}

func mustNotes(t *testing.T, store localstore.Store) []note.Note {
	t.Helper()
	notes, err := store.Notes()
	if err != nil {
		t.Fatalf("unexpected notes error: %v", err)
	}
	return notes
}

func mustCheckpoint(t *testing.T, store localstore.Store) int64 {
	t.Helper()
	checkpoint, err := store.Checkpoint()
	if err != nil {
		t.Fatalf("unexpected checkpoint error: %v", err)
	}
	return checkpoint
}
