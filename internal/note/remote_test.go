package note

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "empty text", text: "", expected: ""},
		{name: "short single line", text: "buy milk", expected: "buy milk"},
		{name: "multi line uses first line", text: "heading\nbody text", expected: "heading"},
		{
			name:     "exactly fifty characters kept verbatim",
			text:     strings.Repeat("a", 50),
			expected: strings.Repeat("a", 50),
		},
		{
			name:     "fifty one characters truncated",
			text:     strings.Repeat("a", 51),
			expected: strings.Repeat("a", 47) + "...",
		},
		{
			name:     "long first line with short second line",
			text:     strings.Repeat("b", 80) + "\nshort",
			expected: strings.Repeat("b", 47) + "...",
		},
		{
			name:     "fifty multibyte runes kept verbatim",
			text:     strings.Repeat("é", 50),
			expected: strings.Repeat("é", 50),
		},
		{
			name:     "long multibyte line truncated on rune boundary",
			text:     strings.Repeat("é", 60),
			expected: strings.Repeat("é", 47) + "...",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTitle(tc.text)
			if got != tc.expected {
				t.Fatalf("DeriveTitle = %q, expected %q", got, tc.expected)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("DeriveTitle produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestToRemoteCarriesTimestampAsCreatedAndUpdated(t *testing.T) {
	owner := mustUserID(t, "user-1")
	local := Note{ID: "note-1", Text: "line one\nline two", TimestampMS: 1700000000123, Tags: []string{"a"}}

	row := ToRemote(local, owner)

	if row.UserID != "user-1" {
		t.Fatalf("unexpected owner: %q", row.UserID)
	}
	if row.Content != local.Text {
		t.Fatalf("content should carry text verbatim")
	}
	if row.Title != "line one" {
		t.Fatalf("unexpected title: %q", row.Title)
	}
	expected := time.UnixMilli(1700000000123).UTC()
	if !row.CreatedAt.Equal(expected) || !row.UpdatedAt.Equal(expected) {
		t.Fatalf("timestamps not preserved: created=%v updated=%v", row.CreatedAt, row.UpdatedAt)
	}
}

func TestRoundTripPreservesTextExactly(t *testing.T) {
	owner := mustUserID(t, "user-1")
	texts := []string{
		"",
		"buy milk",
		strings.Repeat("x", 120) + "\nsecond line\nthird line",
		"title line\n\nbody with trailing newline\n",
	}

	for _, text := range texts {
		local := Note{ID: "note-1", Text: text, TimestampMS: 1700000000000, Tags: []string{"t1", "t2"}}
		back := FromRemote(ToRemote(local, owner))
		if back.Text != text {
			t.Fatalf("round trip mutated text: %q -> %q", text, back.Text)
		}
		if back.TimestampMS != local.TimestampMS {
			t.Fatalf("round trip mutated timestamp: %d -> %d", local.TimestampMS, back.TimestampMS)
		}
		if len(back.Tags) != 2 || back.Tags[0] != "t1" || back.Tags[1] != "t2" {
			t.Fatalf("round trip mutated tags: %#v", back.Tags)
		}
	}
}

func TestFromRemoteDropsTitle(t *testing.T) {
	row := RemoteNote{
		ID:        "note-1",
		UserID:    "user-1",
		Content:   "content body",
		Title:     "a title that is not part of the content",
		UpdatedAt: time.UnixMilli(42).UTC(),
	}

	local := FromRemote(row)

	if local.Text != "content body" {
		t.Fatalf("expected content to map to text, got %q", local.Text)
	}
	if local.TimestampMS != 42 {
		t.Fatalf("expected updated_at to map to timestamp, got %d", local.TimestampMS)
	}
}
