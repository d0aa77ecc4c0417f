package library

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"testing"

	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

// memStore is an in-memory Store that counts writes and can be told to fail.
type memStore struct {
	songs     map[int]models.Song
	playlists map[string]models.PlaylistRecord

	puts    int
	deletes int
	resets  int

	failPut      error
	failDelete   error
	failLoads    int
	failPutAfter int // fail every put once this many puts have succeeded; 0 disables
}

func newMemStore() *memStore {
	return &memStore{
		songs:     make(map[int]models.Song),
		playlists: make(map[string]models.PlaylistRecord),
	}
}

var errInjected = errors.New("injected failure")

func (m *memStore) GetAllSongs() ([]models.Song, error) {
	if m.failLoads > 0 {
		m.failLoads--
		return nil, errInjected
	}
	keys := slices.Sorted(maps.Keys(m.songs))
	out := make([]models.Song, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.songs[k])
	}
	return out, nil
}

func (m *memStore) putAllowed() error {
	if m.failPut != nil {
		return m.failPut
	}
	if m.failPutAfter > 0 && m.puts >= m.failPutAfter {
		return errInjected
	}
	return nil
}

func (m *memStore) PutSong(song models.Song) error {
	if err := m.putAllowed(); err != nil {
		return err
	}
	m.puts++
	m.songs[song.ID] = song
	return nil
}

func (m *memStore) DeleteSong(id int) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	m.deletes++
	delete(m.songs, id)
	return nil
}

func (m *memStore) GetAllPlaylists() ([]models.PlaylistRecord, error) {
	keys := slices.Sorted(maps.Keys(m.playlists))
	out := make([]models.PlaylistRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.playlists[k])
	}
	return out, nil
}

func (m *memStore) PutPlaylist(p models.PlaylistRecord) error {
	if err := m.putAllowed(); err != nil {
		return err
	}
	m.puts++
	if mp, ok := p.(models.ManualPlaylist); ok {
		mp.Songs = slices.Clone(mp.Songs)
		p = mp
	}
	m.playlists[p.PlaylistName()] = p
	return nil
}

func (m *memStore) DeletePlaylist(name string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	m.deletes++
	delete(m.playlists, name)
	return nil
}

func (m *memStore) Reset() error {
	m.resets++
	m.songs = make(map[int]models.Song)
	m.playlists = make(map[string]models.PlaylistRecord)
	return nil
}

type memPayloads struct {
	data    map[int][]byte
	failPut error
}

func newMemPayloads() *memPayloads {
	return &memPayloads{data: make(map[int][]byte)}
}

func (m *memPayloads) Put(id int, data []byte, mimeType string) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.data[id] = data
	return nil
}

func (m *memPayloads) Delete(id int) error {
	if _, ok := m.data[id]; !ok {
		return fmt.Errorf("payload %d: %w", id, fs.ErrNotExist)
	}
	delete(m.data, id)
	return nil
}

func (m *memPayloads) Clear() error {
	m.data = make(map[int][]byte)
	return nil
}

func newTestLibrary(t *testing.T) (*Library, *memStore, *memPayloads) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store := newMemStore()
	payloads := newMemPayloads()
	return New(store, payloads, WithLogger(logger)), store, payloads
}

func addSong(t *testing.T, l *Library, title, artist, album string) models.Song {
	t.Helper()
	song, err := l.AddSong(models.SongMetadata{FileName: title + ".mp3", Title: title, Artist: artist, Album: album}, []byte(title), "audio/mpeg")
	if err != nil {
		t.Fatalf("AddSong(%q) failed: %v", title, err)
	}
	return song
}
