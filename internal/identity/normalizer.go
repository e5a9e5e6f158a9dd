// Package identity repairs note records whose identifier was minted by the
// legacy currentTimeMillis scheme so they can be upserted remotely without
// collision. It runs once per successful authentication, before the first
// flush, and never while unauthenticated.
package identity

import (
	"errors"
	"fmt"

	"github.com/featherdesk/notesync/internal/localstore"
	"github.com/featherdesk/notesync/internal/note"
	"go.uber.org/zap"
)

var errMissingIDProvider = errors.New("identity: id provider is required")

// NormalizerConfig carries the normalizer dependencies.
type NormalizerConfig struct {
	IDProvider note.IDProvider
	Logger     *zap.Logger
}

// Normalizer rewrites legacy digit-only note identifiers with canonical
// globally-unique ones.
type Normalizer struct {
	ids    note.IDProvider
	logger *zap.Logger
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{ids: cfg.IDProvider, logger: logger}, nil
}

// Report summarizes one normalization pass.
type Report struct {
	RepairedNotes  int
	DroppedPending int
}

// Normalize scans the stored notes and the pending queue. Notes carrying a
// legacy id are rewritten with a fresh canonical id and queued for push under
// the new id. Pending entries still keyed by a legacy id are dropped rather
// than repaired: such an entry was never safely synced, and regenerating its
// id here could orphan remote state another device already created. The pass
// is idempotent: once the store is stable a second run changes nothing.
func (n *Normalizer) Normalize(store localstore.Store) (Report, error) {
	notes, err := store.Notes()
	if err != nil {
		return Report{}, fmt.Errorf("identity: load notes: %w", err)
	}
	pending, err := store.Pending()
	if err != nil {
		return Report{}, fmt.Errorf("identity: load pending: %w", err)
	}

	var repaired []note.Note
	for i := range notes {
		if !note.IsLegacyID(notes[i].ID) {
			continue
		}
		freshID, err := n.ids.NewID()
		if err != nil {
			return Report{}, fmt.Errorf("identity: generate id: %w", err)
		}
		n.logger.Info("repaired legacy note id",
			zap.String("legacy_id", notes[i].ID),
			zap.String("note_id", freshID))
		notes[i].ID = freshID
		repaired = append(repaired, notes[i].Clone())
	}

	kept := make([]note.Note, 0, len(pending)+len(repaired))
	dropped := 0
	for _, entry := range pending {
		if note.IsLegacyID(entry.ID) {
			n.logger.Warn("dropped legacy pending write", zap.String("legacy_id", entry.ID))
			dropped++
			continue
		}
		kept = append(kept, entry)
	}
	kept = append(kept, repaired...)

	report := Report{RepairedNotes: len(repaired), DroppedPending: dropped}
	if report.RepairedNotes == 0 && report.DroppedPending == 0 {
		return report, nil
	}

	if err := store.SetNotes(notes); err != nil {
		return Report{}, fmt.Errorf("identity: persist notes: %w", err)
	}
	if err := store.SetPending(kept); err != nil {
		return Report{}, fmt.Errorf("identity: persist pending: %w", err)
	}
	return report, nil
}
