// Package syncer reconciles the locally persisted note store with the remote
// tabular store. The local store is the system of record while offline; once
// a session is active the engine drains the pending-write queue to the remote
// store, pulls remote changes since the last checkpoint, and merges them with
// last-write-wins conflict resolution.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/featherdesk/notesync/internal/identity"
	"github.com/featherdesk/notesync/internal/localstore"
	"github.com/featherdesk/notesync/internal/note"
	"github.com/featherdesk/notesync/internal/remotestore"
	"go.uber.org/zap"
)

// State describes where the engine sits in its cycle.
type State string

const (
	// StateIdle means no cycle is running and sync is enabled.
	StateIdle State = "idle"
	// StateFlushing means queued local writes are being pushed.
	StateFlushing State = "flushing"
	// StatePulling means remote changes are being fetched and merged.
	StatePulling State = "pulling"
	// StateDisabled means no authenticated user; the periodic timer is off.
	StateDisabled State = "disabled"
)

const (
	defaultInterval    = 30 * time.Second
	defaultCallTimeout = 10 * time.Second
)

var (
	errMissingLocalStore  = errors.New("local store is required")
	errMissingRemoteStore = errors.New("remote store is required")
	errMissingNormalizer  = errors.New("identity normalizer is required")
	errMissingIDProvider  = errors.New("id provider is required")
	// ErrNotAuthenticated indicates an operation that requires an active
	// session was invoked without one.
	ErrNotAuthenticated = errors.New("syncer: not authenticated")
)

// EngineConfig carries the engine dependencies.
type EngineConfig struct {
	Local       localstore.Store
	Remote      remotestore.Store
	Normalizer  *identity.Normalizer
	IDProvider  note.IDProvider
	Clock       func() time.Time
	Logger      *zap.Logger
	Interval    time.Duration
	CallTimeout time.Duration
}

// Engine orchestrates periodic and on-demand synchronization. At most one
// flush-or-pull cycle is ever active; concurrent triggers are dropped rather
// than queued.
type Engine struct {
	local       localstore.Store
	remote      remotestore.Store
	normalizer  *identity.Normalizer
	ids         note.IDProvider
	clock       func() time.Time
	logger      *zap.Logger
	interval    time.Duration
	callTimeout time.Duration

	// cycleMu makes a whole flush-or-pull cycle single-flight.
	cycleMu sync.Mutex
	// storeMu serializes every read-modify-write against the local store so
	// a concurrent SaveNote cannot lose updates mid-cycle.
	storeMu sync.Mutex

	mu            sync.Mutex
	state         State
	owner         note.UserID
	authenticated bool
	online        bool

	kick chan struct{}
}

// NewEngine constructs the sync engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Local == nil {
		return nil, newServiceError(opEngineNew, "missing_local_store", errMissingLocalStore)
	}
	if cfg.Remote == nil {
		return nil, newServiceError(opEngineNew, "missing_remote_store", errMissingRemoteStore)
	}
	if cfg.Normalizer == nil {
		return nil, newServiceError(opEngineNew, "missing_normalizer", errMissingNormalizer)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opEngineNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	return &Engine{
		local:       cfg.Local,
		remote:      cfg.Remote,
		normalizer:  cfg.Normalizer,
		ids:         cfg.IDProvider,
		clock:       clock,
		logger:      logger,
		interval:    interval,
		callTimeout: callTimeout,
		state:       StateDisabled,
		kick:        make(chan struct{}, 1),
	}, nil
}

// Run drives the periodic timer until the context is cancelled. Login kicks
// an immediate cycle through the same loop so cycles never overlap.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.kick:
		}
		e.runCycle(ctx)
	}
}

// SetUser begins a session for the given owner: the identity normalizer
// repairs legacy ids, sync is enabled, and one immediate cycle is requested.
func (e *Engine) SetUser(rawUserID string) error {
	owner, err := note.NewUserID(rawUserID)
	if err != nil {
		return newServiceError(opSetUser, "invalid_user_id", err)
	}

	e.mu.Lock()
	e.owner = owner
	e.authenticated = true
	e.state = StateIdle
	e.mu.Unlock()

	e.storeMu.Lock()
	report, err := e.normalizer.Normalize(e.local)
	e.storeMu.Unlock()
	if err != nil {
		return newServiceError(opSetUser, "normalize_failed", err)
	}
	if report.RepairedNotes > 0 || report.DroppedPending > 0 {
		e.logger.Info("identity normalization complete",
			zap.String("user_id", owner.String()),
			zap.Int("repaired_notes", report.RepairedNotes),
			zap.Int("dropped_pending", report.DroppedPending))
	}

	e.requestCycle()
	return nil
}

// ClearUser ends the session. The pending queue and checkpoint stay on disk;
// only the periodic work stops until the next login.
func (e *Engine) ClearUser() {
	e.mu.Lock()
	e.owner = ""
	e.authenticated = false
	e.state = StateDisabled
	e.mu.Unlock()
	e.logger.Info("sync disabled, session cleared")
}

// SaveNote writes the note locally first and always succeeds from the
// caller's perspective as far as the network is concerned. With an active
// session the note also replaces any queued entry for the same id, and when
// online a background flush is attempted without blocking the caller.
func (e *Engine) SaveNote(ctx context.Context, n note.Note) (note.Note, error) {
	if n.ID == "" {
		freshID, err := e.ids.NewID()
		if err != nil {
			return note.Note{}, newServiceError(opSaveNote, "id_generation_failed", err)
		}
		n.ID = freshID
	}
	if n.TimestampMS == 0 {
		n.TimestampMS = e.clock().UnixMilli()
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}

	authenticated := e.isAuthenticated()

	e.storeMu.Lock()
	err := e.writeNoteLocked(n, authenticated)
	e.storeMu.Unlock()
	if err != nil {
		return note.Note{}, err
	}

	if authenticated && e.isOnline() {
		go e.flushInBackground()
	}
	return n, nil
}

func (e *Engine) writeNoteLocked(n note.Note, queueForRemote bool) error {
	notes, err := e.local.Notes()
	if err != nil {
		return newServiceError(opSaveNote, "load_notes_failed", err)
	}
	notes = replaceByID(notes, n)
	if err := e.local.SetNotes(notes); err != nil {
		return newServiceError(opSaveNote, "persist_notes_failed", err)
	}

	if !queueForRemote {
		return nil
	}

	pending, err := e.local.Pending()
	if err != nil {
		return newServiceError(opSaveNote, "load_pending_failed", err)
	}
	pending = replaceByID(pending, n)
	if err := e.local.SetPending(pending); err != nil {
		return newServiceError(opSaveNote, "persist_pending_failed", err)
	}
	return nil
}

// replaceByID swaps the entry with a matching id in place, or appends. The
// queue holds at most one entry per id.
func replaceByID(list []note.Note, n note.Note) []note.Note {
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			return list
		}
	}
	return append(list, n)
}

// DeleteNote removes the note locally right away. With an active online
// session one best-effort remote delete is issued; a failure is logged and
// never retried or queued, so the remote row may outlive the local one.
func (e *Engine) DeleteNote(ctx context.Context, noteID string) error {
	e.storeMu.Lock()
	err := e.removeNoteLocked(noteID)
	e.storeMu.Unlock()
	if err != nil {
		return err
	}

	owner, authenticated := e.currentOwner()
	if !authenticated || !e.isOnline() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := e.remote.DeleteNote(callCtx, noteID, owner); err != nil {
		e.logger.Warn("best-effort remote delete failed",
			zap.String("note_id", noteID),
			zap.String("user_id", owner.String()),
			zap.Error(err))
	}
	return nil
}

func (e *Engine) removeNoteLocked(noteID string) error {
	notes, err := e.local.Notes()
	if err != nil {
		return newServiceError(opDeleteNote, "load_notes_failed", err)
	}
	if err := e.local.SetNotes(removeByID(notes, noteID)); err != nil {
		return newServiceError(opDeleteNote, "persist_notes_failed", err)
	}

	pending, err := e.local.Pending()
	if err != nil {
		return newServiceError(opDeleteNote, "load_pending_failed", err)
	}
	if err := e.local.SetPending(removeByID(pending, noteID)); err != nil {
		return newServiceError(opDeleteNote, "persist_pending_failed", err)
	}
	return nil
}

func removeByID(list []note.Note, noteID string) []note.Note {
	kept := make([]note.Note, 0, len(list))
	for _, item := range list {
		if item.ID == noteID {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// ListNotes returns the current local note list.
func (e *Engine) ListNotes() ([]note.Note, error) {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()
	return e.local.Notes()
}

// ForceSync runs one cycle immediately. If a cycle is already in progress
// the request is dropped. Offline or unauthenticated it no-ops without error.
func (e *Engine) ForceSync(ctx context.Context) {
	e.runCycle(ctx)
}

// Status reports the engine state for the host UI.
type Status struct {
	IsOnline        bool  `json:"isOnline"`
	PendingChanges  int   `json:"pendingChanges"`
	LastSyncMS      int64 `json:"lastSyncTime"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

// Status returns connectivity, queue depth, and the last successful pull
// checkpoint.
func (e *Engine) Status() (Status, error) {
	e.storeMu.Lock()
	pending, err := e.local.Pending()
	if err != nil {
		e.storeMu.Unlock()
		return Status{}, newServiceError(opStatus, "load_pending_failed", err)
	}
	checkpoint, err := e.local.Checkpoint()
	e.storeMu.Unlock()
	if err != nil {
		return Status{}, newServiceError(opStatus, "load_checkpoint_failed", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		IsOnline:        e.online,
		PendingChanges:  len(pending),
		LastSyncMS:      checkpoint,
		IsAuthenticated: e.authenticated,
	}, nil
}

// CurrentState exposes the engine state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) requestCycle() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) flushInBackground() {
	if !e.cycleMu.TryLock() {
		return
	}
	defer e.cycleMu.Unlock()

	owner, authenticated := e.currentOwner()
	if !authenticated {
		return
	}
	e.flush(context.Background(), owner)
	e.setState(StateIdle)
}

// runCycle performs one Flushing then Pulling pass. Overlapping cycles never
// run: a trigger arriving mid-cycle is dropped.
func (e *Engine) runCycle(ctx context.Context) {
	if !e.cycleMu.TryLock() {
		return
	}
	defer e.cycleMu.Unlock()

	owner, authenticated := e.currentOwner()
	if !authenticated {
		e.setState(StateDisabled)
		return
	}

	if !e.probe(ctx) {
		e.setState(StateIdle)
		return
	}

	e.setState(StateFlushing)
	e.flush(ctx, owner)

	// Push and pull are independent directions; a partial flush still pulls.
	e.setState(StatePulling)
	e.pull(ctx, owner)

	e.setState(StateIdle)
}

// probe checks connectivity with a cheap bounded round trip and records the
// outcome.
func (e *Engine) probe(ctx context.Context) bool {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	err := e.remote.Ping(callCtx)
	e.setOnline(err == nil)
	if err != nil {
		e.logger.Debug("connectivity probe failed", zap.Error(err))
	}
	return err == nil
}

// flush drains the pending queue in order, oldest first. Each acknowledged
// entry is removed and the shrunk queue persisted immediately, so a crash
// mid-flush never re-sends acknowledged writes. The first failure aborts the
// remaining entries for this cycle; they stay queued in original order.
func (e *Engine) flush(ctx context.Context, owner note.UserID) {
	e.storeMu.Lock()
	pending, err := e.local.Pending()
	e.storeMu.Unlock()
	if err != nil {
		e.logger.Error("flush could not load pending queue", zap.Error(err))
		return
	}

	for _, entry := range pending {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err := e.remote.UpsertNote(callCtx, note.ToRemote(entry, owner))
		cancel()
		if err != nil {
			e.setOnline(false)
			e.logger.Warn("flush aborted, entries left queued for next cycle",
				zap.String("note_id", entry.ID),
				zap.Error(err))
			return
		}
		if err := e.acknowledgePending(entry); err != nil {
			e.logger.Error("flush could not persist shrunk queue",
				zap.String("note_id", entry.ID),
				zap.Error(err))
			return
		}
	}
}

// acknowledgePending removes exactly the entry that was sent. A newer write
// for the same id queued mid-flight stays, even one landing in the same
// millisecond, so nothing unsent is ever dropped as acknowledged.
func (e *Engine) acknowledgePending(sent note.Note) error {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	pending, err := e.local.Pending()
	if err != nil {
		return err
	}
	kept := make([]note.Note, 0, len(pending))
	for _, entry := range pending {
		if sameNote(entry, sent) {
			continue
		}
		kept = append(kept, entry)
	}
	return e.local.SetPending(kept)
}

func sameNote(a, b note.Note) bool {
	if a.ID != b.ID || a.TimestampMS != b.TimestampMS || a.Text != b.Text {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

// pull fetches remote rows at or after the checkpoint and merges them into
// the local list. Zero rows leave both the notes and the checkpoint
// untouched. After a merge the checkpoint advances to wall-clock now rather
// than the max updated_at observed, trading a small re-scan overlap next
// cycle for tolerance of clock skew.
func (e *Engine) pull(ctx context.Context, owner note.UserID) {
	e.storeMu.Lock()
	checkpoint, err := e.local.Checkpoint()
	e.storeMu.Unlock()
	if err != nil {
		e.logger.Error("pull could not load checkpoint", zap.Error(err))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	rows, err := e.remote.QueryNotesSince(callCtx, owner, checkpoint)
	cancel()
	if err != nil {
		e.setOnline(false)
		e.logger.Warn("pull failed, checkpoint unchanged", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	notes, err := e.local.Notes()
	if err != nil {
		e.logger.Error("pull could not load notes", zap.Error(err))
		return
	}

	indexByID := make(map[string]int, len(notes))
	for i := range notes {
		indexByID[notes[i].ID] = i
	}

	merged := 0
	for _, row := range rows {
		if i, found := indexByID[row.ID]; found {
			if remoteWins(notes[i], row) {
				notes[i] = note.FromRemote(row)
				merged++
			}
			continue
		}
		notes = append(notes, note.FromRemote(row))
		indexByID[row.ID] = len(notes) - 1
		merged++
	}

	if err := e.local.SetNotes(notes); err != nil {
		e.logger.Error("pull could not persist merged notes", zap.Error(err))
		return
	}

	next := e.clock().UnixMilli()
	if next < checkpoint {
		next = checkpoint
	}
	if err := e.local.SetCheckpoint(next); err != nil {
		e.logger.Error("pull could not advance checkpoint", zap.Error(err))
		return
	}

	e.logger.Info("pull merged remote changes",
		zap.String("user_id", owner.String()),
		zap.Int("rows", len(rows)),
		zap.Int("applied", merged),
		zap.Int64("checkpoint_ms", next))
}

func (e *Engine) currentOwner() (note.UserID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner, e.authenticated
}

func (e *Engine) isAuthenticated() bool {
	_, authenticated := e.currentOwner()
	return authenticated
}

func (e *Engine) isOnline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

func (e *Engine) setOnline(online bool) {
	e.mu.Lock()
	e.online = online
	e.mu.Unlock()
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	if e.authenticated || state == StateDisabled {
		e.state = state
	}
	e.mu.Unlock()
}
