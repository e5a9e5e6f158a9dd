package syncer

import "github.com/featherdesk/notesync/internal/note"

// remoteWins decides which version of a note to keep when the same id exists
// on both sides. The strictly newer timestamp wins in full; there is no
// field-level merging. On an exact tie the remote version wins, which treats
// the pair as already consistent and avoids a redundant write-back. The
// decision is a pure function of the two timestamps.
func remoteWins(local note.Note, remote note.RemoteNote) bool {
	return remote.UpdatedAt.UnixMilli() >= local.TimestampMS
}
