package library

import (
	"path/filepath"
	"regexp"
	"strings"

	"legato/internal/search"
	"legato/pkg/models"
)

var creditSeparator = regexp.MustCompile(`,\s+`)

// Song is the single live instance of a library song. Fields are only
// written while the owning Library holds its lock.
type Song struct {
	id       int
	title    string
	artist   string
	album    string
	duration int
	aliases  []string
}

func newSong(rec models.Song) *Song {
	s := &Song{
		id:       rec.ID,
		title:    orUnknown(rec.Title),
		album:    orUnknown(rec.Album),
		duration: rec.Duration,
	}
	s.setArtist(orUnknown(rec.Artist))
	return s
}

// Record returns the persisted form of s
func (s *Song) Record() models.Song {
	return models.Song{
		ID:       s.id,
		Title:    s.title,
		Artist:   s.artist,
		Album:    s.album,
		Duration: s.duration,
	}
}

func (s *Song) setArtist(credit string) {
	s.artist = credit
	s.aliases = aliasesOf(credit)
}

// aliasesOf returns the full credit followed by each individual artist of a
// multi-artist credit: "A, B" yields ["A, B", "A", "B"].
func aliasesOf(credit string) []string {
	aliases := []string{credit}
	parts := creditSeparator.Split(credit, -1)
	if len(parts) < 2 {
		return aliases
	}
	seen := map[string]bool{credit: true}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		aliases = append(aliases, p)
	}
	return aliases
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Unknown
	}
	return s
}

// titleFromFileName strips directory and extension
func titleFromFileName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Artist groups every song crediting one alias
type Artist struct {
	name        string
	songs       []*Song
	albums      []*Album
	albumCounts map[string]int
}

// Album groups songs by album name across artists. artist is the alias the
// album was first discovered under.
type Album struct {
	name    string
	artist  string
	songs   []*Song
	members map[int]struct{}
}

// searchable adapts a song and its playlist names to search.Entity
type searchable struct {
	song      *Song
	playlists []string
}

func (e searchable) SearchValues(field search.Field) []string {
	switch field {
	case search.FieldTitle:
		return []string{e.song.title}
	case search.FieldArtist:
		return []string{e.song.artist}
	case search.FieldAlbum:
		return []string{e.song.album}
	case search.FieldPlaylist:
		return e.playlists
	}
	values := []string{e.song.title, e.song.artist, e.song.album}
	return append(values, e.playlists...)
}
