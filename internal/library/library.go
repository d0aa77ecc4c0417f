// Package library holds the in-memory music library: the canonical song
// registry and the artist, album and playlist indices derived from it.
//
// Every mutation persists through the Store before memory is changed and runs
// to completion under the library lock, so readers never observe a song that
// is present in one index and missing from another.
package library

import (
	"cmp"
	"errors"
	"io/fs"
	"strings"
	"sync"

	"legato/internal/sorted"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// Option configures a Library
type Option func(*Library)

// WithLogger sets the logger used for load and cascade diagnostics
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// WithCollator sets the string ordering of titles and names
func WithCollator(c *sorted.Collator) Option {
	return func(l *Library) { l.collator = c }
}

// Library is safe for concurrent use.
type Library struct {
	mu       sync.RWMutex
	store    Store
	payloads PayloadStore
	logger   *logrus.Logger
	collator *sorted.Collator

	registry map[int]*Song
	songs    []*Song
	lastID   int

	artists   []*Artist
	artistMap map[string]*Artist
	albums    []*Album
	albumMap  map[string]*Album

	playlists   []*Playlist
	playlistMap map[string]*Playlist
	// memberships maps a song id to the names of the manual playlists holding it
	memberships map[int]map[string]struct{}
}

// New creates an empty library. Call LoadAll to populate it from the store.
func New(store Store, payloads PayloadStore, opts ...Option) *Library {
	l := &Library{
		store:    store,
		payloads: payloads,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logrus.New()
	}
	if l.collator == nil {
		l.collator = sorted.NewCollator(language.Und)
	}
	l.resetIndices()
	return l
}

func (l *Library) resetIndices() {
	l.registry = make(map[int]*Song)
	l.songs = nil
	l.artists = nil
	l.artistMap = make(map[string]*Artist)
	l.albums = nil
	l.albumMap = make(map[string]*Album)
	l.playlists = nil
	l.playlistMap = make(map[string]*Playlist)
	l.memberships = make(map[int]map[string]struct{})
}

func (l *Library) byTitle(a, b *Song) int {
	if c := l.collator.Compare(a.title, b.title); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func (l *Library) byArtistName(a, b *Artist) int { return l.collator.Compare(a.name, b.name) }

func (l *Library) byAlbumName(a, b *Album) int { return l.collator.Compare(a.name, b.name) }

func (l *Library) byPlaylistName(a, b *Playlist) int { return l.collator.Compare(a.name, b.name) }

// LoadAll rebuilds every index from the store. If the store cannot be read it
// is reset and read once more; a second failure is returned.
func (l *Library) LoadAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.load()
	if err == nil {
		return nil
	}

	l.logger.WithError(err).Warn("Library store unreadable, resetting it")
	if resetErr := l.store.Reset(); resetErr != nil {
		return storageErr("reset", resetErr)
	}
	return l.load()
}

func (l *Library) load() error {
	songs, err := l.store.GetAllSongs()
	if err != nil {
		return storageErr("load songs", err)
	}
	records, err := l.store.GetAllPlaylists()
	if err != nil {
		return storageErr("load playlists", err)
	}

	l.resetIndices()
	for _, rec := range songs {
		if _, dup := l.registry[rec.ID]; dup {
			l.logger.WithField("song_id", rec.ID).Warn("Duplicate song record ignored")
			continue
		}
		s := newSong(rec)
		l.registry[s.id] = s
		l.songs = sorted.Insert(l.songs, s, l.byTitle)
		l.lastID = max(l.lastID, s.id)
	}
	for _, s := range l.songs {
		l.attach(s)
	}

	skipped := 0
	for _, rec := range records {
		p, missing := l.playlistFromRecord(rec)
		skipped += missing
		l.insertPlaylist(p)
	}

	l.logger.WithFields(logrus.Fields{
		"songs":        len(l.songs),
		"artists":      len(l.artists),
		"albums":       len(l.albums),
		"playlists":    len(l.playlists),
		"skipped_refs": skipped,
		"last_song_id": l.lastID,
	}).Info("Library loaded")
	return nil
}

// AddSong registers a new song and its audio payload. A missing title is
// derived from the file name.
func (l *Library) AddSong(meta models.SongMetadata, payload []byte, mimeType string) (models.Song, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = titleFromFileName(meta.FileName)
	}
	if mimeType == "" {
		mimeType = meta.MimeType
	}

	s := newSong(models.Song{
		ID:       l.lastID + 1,
		Title:    title,
		Artist:   meta.Artist,
		Album:    meta.Album,
		Duration: meta.Duration,
	})

	if err := l.store.PutSong(s.Record()); err != nil {
		return models.Song{}, storageErr("put song", err)
	}
	if err := l.payloads.Put(s.id, payload, mimeType); err != nil {
		if delErr := l.store.DeleteSong(s.id); delErr != nil {
			l.logger.WithError(delErr).WithField("song_id", s.id).Error("Failed to roll back song record")
		}
		return models.Song{}, storageErr("put payload", err)
	}

	l.lastID = s.id
	l.registry[s.id] = s
	l.songs = sorted.Insert(l.songs, s, l.byTitle)
	l.attach(s)

	l.logger.WithFields(logrus.Fields{
		"song_id": s.id,
		"title":   s.title,
		"artist":  s.artist,
		"album":   s.album,
	}).Info("Added song")
	return s.Record(), nil
}

// RemoveSong deletes a song from every playlist, every index, the store and
// the payload store.
func (l *Library) RemoveSong(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.registry[id]
	if !ok {
		return songNotFound(id)
	}
	return l.removeSong(s)
}

func (l *Library) removeSong(s *Song) error {
	for _, name := range l.membershipNames(s.id) {
		p := l.playlistMap[name]
		if p == nil {
			continue
		}
		if err := l.removeFromPlaylist(p, s); err != nil {
			return err
		}
	}

	if err := l.store.DeleteSong(s.id); err != nil {
		return storageErr("delete song", err)
	}

	l.detach(s)
	l.songs, _ = sorted.Remove(l.songs, s, l.byTitle)
	delete(l.registry, s.id)
	delete(l.memberships, s.id)

	if err := l.payloads.Delete(s.id); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete payload", err)
	}

	l.logger.WithField("song_id", s.id).Info("Removed song")
	return nil
}

// Clear deletes every song, playlist and payload. Song ids are not reused
// afterwards.
func (l *Library) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Reset(); err != nil {
		return storageErr("reset", err)
	}
	l.resetIndices()
	if err := l.payloads.Clear(); err != nil {
		return storageErr("clear payloads", err)
	}
	l.logger.Info("Library cleared")
	return nil
}

// Song returns the record of one song
func (l *Library) Song(id int) (models.Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.registry[id]
	if !ok {
		return models.Song{}, songNotFound(id)
	}
	return s.Record(), nil
}

// Songs returns every song ordered by title
func (l *Library) Songs() []models.Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return records(l.songs)
}

// Len returns the number of songs
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.songs)
}

// Contains reports whether a song with the title, artist and album that meta
// would be registered under already exists.
func (l *Library) Contains(meta models.SongMetadata) bool {
	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = titleFromFileName(meta.FileName)
	}
	probe := newSong(models.Song{Title: title, Artist: meta.Artist, Album: meta.Album})

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.songs {
		if s.title == probe.title && s.artist == probe.artist && s.album == probe.album {
			return true
		}
	}
	return false
}

func records(songs []*Song) []models.Song {
	out := make([]models.Song, len(songs))
	for i, s := range songs {
		out[i] = s.Record()
	}
	return out
}
