package note

import (
	"strings"
	"time"
)

const (
	titleMaxLength      = 50
	titleTruncateLength = 47
	titleEllipsis       = "..."
)

// RemoteNote is the remote tabular representation of a note. UserID always
// equals the authenticated owner; UpdatedAt is the sole conflict-resolution
// signal on the remote side. Title is derived from the content when mapping
// local to remote and is never stored locally.
type RemoteNote struct {
	ID        string
	UserID    string
	Content   string
	Title     string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeriveTitle produces the display title for a note: the first line of the
// text verbatim when it fits in 50 characters, otherwise the first 47
// characters followed by an ellipsis. Lengths count runes, not bytes, so
// truncation never splits a multi-byte character and the title is always
// valid UTF-8.
func DeriveTitle(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	runes := []rune(firstLine)
	if len(runes) <= titleMaxLength {
		return firstLine
	}
	return string(runes[:titleTruncateLength]) + titleEllipsis
}

// ToRemote maps a local note to its remote row for the given owner. Text
// becomes Content, the title is synthesized from the first line, and the
// local edit timestamp is carried as both CreatedAt and UpdatedAt; an upsert
// only applies CreatedAt on first insert.
func ToRemote(n Note, owner UserID) RemoteNote {
	at := time.UnixMilli(n.TimestampMS).UTC()
	return RemoteNote{
		ID:        n.ID,
		UserID:    owner.String(),
		Content:   n.Text,
		Title:     DeriveTitle(n.Text),
		Tags:      append([]string(nil), n.Tags...),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// FromRemote maps a remote row back to the local representation. The title
// is discarded: Text is the single source of truth and the first line serves
// as the title implicitly, so a note that round-trips through the remote
// store keeps its text byte-for-byte.
func FromRemote(row RemoteNote) Note {
	tags := append([]string(nil), row.Tags...)
	if tags == nil {
		tags = []string{}
	}
	return Note{
		ID:          row.ID,
		Text:        row.Content,
		TimestampMS: row.UpdatedAt.UnixMilli(),
		Tags:        tags,
	}
}
