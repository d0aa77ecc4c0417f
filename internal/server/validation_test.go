package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"legato/internal/library"
	"legato/internal/payload"
	"legato/internal/queue"
)

func TestValidateSongID(t *testing.T) {
	ms, _ := newTestServer(t)

	tests := []struct {
		name      string
		raw       string
		wantID    int
		wantError bool
	}{
		{name: "valid song ID", raw: "123", wantID: 123},
		{name: "missing song ID", raw: "", wantError: true},
		{name: "invalid song ID format", raw: "abc", wantError: true},
		{name: "negative song ID", raw: "-1", wantError: true},
		{name: "zero song ID", raw: "0", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ms.validateSongID(tt.raw)

			if tt.wantError && err == nil {
				t.Errorf("validateSongID() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateSongID() unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("validateSongID() = %v, want %v", id, tt.wantID)
			}
		})
	}
}

func TestValidateQueueIndex(t *testing.T) {
	ms, _ := newTestServer(t)

	tests := []struct {
		raw       string
		want      int
		wantError bool
	}{
		{"0", 0, false},
		{"7", 7, false},
		{"", 0, true},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := ms.validateQueueIndex(tt.raw)
		if (err != nil) != tt.wantError || got != tt.want {
			t.Errorf("validateQueueIndex(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

func TestValidateSearchQuery(t *testing.T) {
	ms, _ := newTestServer(t)

	tests := []struct {
		name      string
		query     string
		wantError bool
	}{
		{name: "valid search query", query: `artist:"Bob" -album:live`},
		{name: "empty search query", query: ""},
		{name: "long search query", query: string(make([]byte, 1001)), wantError: true},
		{name: "query with null byte", query: "test\x00query", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ms.validateSearchQuery(tt.query)

			if tt.wantError && err == nil {
				t.Errorf("validateSearchQuery() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateSearchQuery() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateInboxPath(t *testing.T) {
	ms, _ := newTestServer(t)
	inbox := ms.config.Inbox.Path

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{name: "file within inbox", filePath: filepath.Join(inbox, "song.mp3")},
		{name: "nested file", filePath: filepath.Join(inbox, "album", "song.mp3")},
		{name: "file named like a parent dir", filePath: filepath.Join(inbox, "..song.mp3")},
		{name: "path traversal attempt", filePath: inbox + "/../../../etc/passwd", wantError: true},
		{name: "absolute path outside inbox", filePath: "/etc/passwd", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ms.validateInboxPath(tt.filePath)

			if tt.wantError && err == nil {
				t.Errorf("validateInboxPath() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateInboxPath() unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePlaylistName(t *testing.T) {
	ms, _ := newTestServer(t)

	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"simple", "Road trip", false},
		{"blank", "   ", true},
		{"too long", string(make([]rune, 256)), true},
		{"newline", "a\nb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ms.validatePlaylistName(tt.input); (err != nil) != tt.wantError {
				t.Errorf("validatePlaylistName(%q) = %v", tt.input, err)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"song not found", &library.NotFoundError{Kind: "song", Name: "9"}, http.StatusNotFound},
		{"payload missing", fmt.Errorf("song 3: %w", payload.ErrNotFound), http.StatusNotFound},
		{"name conflict", &library.NameConflictError{Name: "Mix"}, http.StatusConflict},
		{"auto playlist", library.ErrAutoPlaylist, http.StatusBadRequest},
		{"queue index", queue.ErrIndexOutOfRange, http.StatusBadRequest},
		{"storage", &library.StorageError{Op: "put song", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "normal input", input: "Hello World", expected: "Hello World"},
		{name: "input with null bytes", input: "Hello\x00World", expected: "HelloWorld"},
		{name: "input with whitespace", input: "  Hello World  ", expected: "Hello World"},
		{name: "empty input", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeInput(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeInput() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		start, end int64
		ok         bool
	}{
		{"bytes=0-3", 0, 3, true},
		{"bytes=4-", 4, 9, true},
		{"bytes=8-100", 8, 9, true},
		{"bytes=-3", 7, 9, true},
		{"bytes=-50", 0, 9, true},
		{"bytes=10-12", 0, 0, false},
		{"bytes=5-2", 0, 0, false},
		{"bytes=0-1,4-5", 0, 0, false},
		{"items=0-1", 0, 0, false},
		{"bytes=abc", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, ok := parseRange(tt.header, 10)
			if ok != tt.ok || (ok && (start != tt.start || end != tt.end)) {
				t.Errorf("parseRange(%q) = %d, %d, %v", tt.header, start, end, ok)
			}
		})
	}
}
