package note

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
var ErrInvalidUserID = errors.New("note: invalid user id")

// Note is the local representation of a note as persisted by the local store.
// Tags keep their insertion order. TimestampMS is the last local edit time in
// epoch milliseconds and is the sole input to conflict resolution on the
// local side.
type Note struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	TimestampMS int64    `json:"timestamp"`
	Tags        []string `json:"tags"`
}

// Clone returns a deep copy of the note so callers can mutate the result
// without aliasing the tag slice.
func (n Note) Clone() Note {
	out := n
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	return out
}

// IsLegacyID reports whether an identifier was minted by the legacy
// currentTimeMillis scheme: non-empty and composed entirely of ASCII digits.
// Such identifiers are not globally unique and must be repaired before the
// note can ever be pushed remotely.
func IsLegacyID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UserID represents a validated owner identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}
