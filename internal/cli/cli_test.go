package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legato/internal/config"
	"legato/internal/library"
	"legato/pkg/models"
)

// setupEnv points every storage path of the default config into a temp dir
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LEGATO_DB_PATH", filepath.Join(dir, "legato.db"))
	t.Setenv("LEGATO_PAYLOAD_DIR", filepath.Join(dir, "payloads"))
	t.Setenv("LEGATO_INBOX", filepath.Join(dir, "inbox"))
	t.Setenv("LEGATO_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.toml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddAndList(t *testing.T) {
	dir := setupEnv(t)
	first := writeAudio(t, dir, "Morning.mp3")
	second := writeAudio(t, dir, "Evening.flac")

	out, err := run(t, dir, "--json", "add", first, second, filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	var added []models.Song
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("add output %q: %v", out, err)
	}
	if len(added) != 2 || added[0].Title != "Morning" || added[1].ID != 2 {
		t.Errorf("added = %+v", added)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	// re-adding the same file is a no-op
	out, err = run(t, dir, "--json", "add", first)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if strings.TrimSpace(out) != "null" {
		t.Errorf("re-add output = %q", out)
	}

	out, err = run(t, dir, "songs")
	if err != nil {
		t.Fatalf("songs: %v", err)
	}
	for _, want := range []string{"evening", "morning", "2 songs"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("songs table missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, dir, "--json", "songs", "title:morn")
	if err != nil {
		t.Fatalf("songs query: %v", err)
	}
	var songs []models.Song
	if err := json.Unmarshal([]byte(out), &songs); err != nil {
		t.Fatal(err)
	}
	if len(songs) != 1 || songs[0].Title != "Morning" {
		t.Errorf("filtered songs = %+v", songs)
	}

	if _, err := run(t, dir, "songs", "--view", "playlist", "--name", "Nope"); err == nil {
		t.Error("unknown playlist view should fail")
	}
}

func TestExportImport(t *testing.T) {
	dir := setupEnv(t)
	song := writeAudio(t, dir, "Morning.mp3")
	if _, err := run(t, dir, "add", song); err != nil {
		t.Fatal(err)
	}

	// seed a playlist through the library itself
	a, err := openApp(mustLoad(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.library.AddSongToPlaylist(1, "Wake up"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.library.CreateAutoPlaylist("Mornings", "title:morning"); err != nil {
		t.Fatal(err)
	}
	a.Close()

	out, err := run(t, dir, "playlists")
	if err != nil {
		t.Fatalf("playlists: %v", err)
	}
	if !strings.Contains(out, "Wake up") || !strings.Contains(out, "title:morning") {
		t.Errorf("playlists table:\n%s", out)
	}

	exportPath := filepath.Join(dir, "export.json")
	if _, err := run(t, dir, "export", "Wake up", "-o", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc models.ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export document: %v", err)
	}
	if len(doc.Playlists) != 1 || doc.Playlists[0].Name != "Wake up" {
		t.Errorf("exported = %+v", doc.Playlists)
	}

	out, err = run(t, dir, "--json", "import", exportPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var result library.ImportResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	// the playlist already holds every exported song
	if len(result.Unchanged) != 1 || result.Matched != 1 {
		t.Errorf("import result = %+v", result)
	}

	if _, err := run(t, dir, "export", "Missing"); err == nil {
		t.Error("exporting an unknown playlist should fail")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.seconds); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func mustLoad(t *testing.T, dir string) *config.Config {
	t.Helper()
	opts := &options{cfgFile: filepath.Join(dir, "config.toml")}
	if err := opts.initConfig(); err != nil {
		t.Fatal(err)
	}
	return opts.cfg
}
