package library

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"legato/internal/search"
	"legato/internal/sorted"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

// Kind tells manual playlists from query playlists
type Kind string

const (
	KindManual Kind = "manual"
	KindAuto   Kind = "auto"
)

// Playlist is either an ordered song list (KindManual) or a stored search
// query evaluated against the whole library (KindAuto).
type Playlist struct {
	name  string
	kind  Kind
	songs []*Song
	query *search.Query
}

// PlaylistView is a snapshot of a playlist with its current songs
type PlaylistView struct {
	Name  string        `json:"name"`
	Kind  Kind          `json:"kind"`
	Query string        `json:"query,omitempty"`
	Songs []models.Song `json:"songs"`
}

func (p *Playlist) recordNamed(name string) models.PlaylistRecord {
	if p.kind == KindAuto {
		return models.AutoPlaylist{Name: name, Query: p.query.String()}
	}
	return manualRecord(name, p.songs)
}

func (p *Playlist) record() models.PlaylistRecord { return p.recordNamed(p.name) }

func manualRecord(name string, songs []*Song) models.ManualPlaylist {
	ids := make([]int, len(songs))
	for i, s := range songs {
		ids[i] = s.id
	}
	return models.ManualPlaylist{Name: name, Songs: ids}
}

// playlistFromRecord resolves stored ids to live songs. It returns the number
// of ids that no longer resolve.
func (l *Library) playlistFromRecord(rec models.PlaylistRecord) (*Playlist, int) {
	switch r := rec.(type) {
	case models.AutoPlaylist:
		return &Playlist{name: r.Name, kind: KindAuto, query: search.Parse(r.Query)}, 0
	case models.ManualPlaylist:
		p := &Playlist{name: r.Name, kind: KindManual}
		missing := 0
		for _, id := range r.Songs {
			s, ok := l.registry[id]
			if !ok || slices.Contains(p.songs, s) {
				missing++
				continue
			}
			p.songs = append(p.songs, s)
		}
		return p, missing
	}
	panic(fmt.Sprintf("unknown playlist record %T", rec))
}

func (l *Library) insertPlaylist(p *Playlist) {
	l.playlistMap[p.name] = p
	l.playlists = sorted.Insert(l.playlists, p, l.byPlaylistName)
	for _, s := range p.songs {
		l.addMembership(s.id, p.name)
	}
}

func (l *Library) dropPlaylist(p *Playlist) {
	delete(l.playlistMap, p.name)
	l.playlists, _ = sorted.Remove(l.playlists, p, l.byPlaylistName)
	for _, s := range p.songs {
		l.removeMembership(s.id, p.name)
	}
}

func (l *Library) addMembership(id int, name string) {
	names := l.memberships[id]
	if names == nil {
		names = make(map[string]struct{})
		l.memberships[id] = names
	}
	names[name] = struct{}{}
}

func (l *Library) removeMembership(id int, name string) {
	names := l.memberships[id]
	delete(names, name)
	if len(names) == 0 {
		delete(l.memberships, id)
	}
}

func (l *Library) membershipNames(id int) []string {
	return slices.Sorted(maps.Keys(l.memberships[id]))
}

func (l *Library) playlistView(p *Playlist) PlaylistView {
	v := PlaylistView{Name: p.name, Kind: p.kind}
	if p.kind == KindAuto {
		v.Query = p.query.String()
		v.Songs = records(l.matching(p.query))
	} else {
		v.Songs = records(p.songs)
	}
	return v
}

func playlistName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// CreatePlaylist creates an empty manual playlist. If a manual playlist of
// that name exists it is returned unchanged; an auto playlist of that name is
// returned together with a *NameConflictError.
func (l *Library) CreatePlaylist(name string) (PlaylistView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createPlaylist(name, KindManual, "")
}

// CreateAutoPlaylist creates a playlist whose songs are every library song
// matching query. Existing names behave as in CreatePlaylist.
func (l *Library) CreateAutoPlaylist(name, query string) (PlaylistView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createPlaylist(name, KindAuto, query)
}

func (l *Library) createPlaylist(name string, kind Kind, query string) (PlaylistView, error) {
	name, err := playlistName(name)
	if err != nil {
		return PlaylistView{}, err
	}
	if p, ok := l.playlistMap[name]; ok {
		if p.kind != kind {
			return l.playlistView(p), &NameConflictError{Name: name}
		}
		return l.playlistView(p), nil
	}

	p := &Playlist{name: name, kind: kind}
	if kind == KindAuto {
		p.query = search.Parse(query)
	}
	if err := l.store.PutPlaylist(p.record()); err != nil {
		return PlaylistView{}, storageErr("put playlist", err)
	}
	l.insertPlaylist(p)

	l.logger.WithFields(logrus.Fields{"playlist": name, "kind": kind}).Info("Created playlist")
	return l.playlistView(p), nil
}

// UpdateAutoPlaylist replaces the query of an auto playlist
func (l *Library) UpdateAutoPlaylist(name, query string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.playlistMap[name]
	if !ok {
		return playlistNotFound(name)
	}
	if p.kind != KindAuto {
		return ErrManualPlaylist
	}
	q := search.Parse(query)
	if err := l.store.PutPlaylist(models.AutoPlaylist{Name: name, Query: q.String()}); err != nil {
		return storageErr("put playlist", err)
	}
	p.query = q
	return nil
}

// RenamePlaylist moves a playlist to a new name, keeping its songs or query.
// On any failure the old playlist is left as it was.
func (l *Library) RenamePlaylist(oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	newName, err := playlistName(newName)
	if err != nil {
		return err
	}
	p, ok := l.playlistMap[oldName]
	if !ok {
		return playlistNotFound(oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, taken := l.playlistMap[newName]; taken {
		return &NameConflictError{Name: newName}
	}

	if err := l.store.DeletePlaylist(oldName); err != nil {
		return storageErr("delete playlist", err)
	}
	if err := l.store.PutPlaylist(p.recordNamed(newName)); err != nil {
		if restoreErr := l.store.PutPlaylist(p.record()); restoreErr != nil {
			l.logger.WithError(restoreErr).WithField("playlist", oldName).Error("Failed to restore playlist after rename failure")
		}
		return storageErr("put playlist", err)
	}

	l.dropPlaylist(p)
	p.name = newName
	l.insertPlaylist(p)

	l.logger.WithFields(logrus.Fields{"from": oldName, "to": newName}).Info("Renamed playlist")
	return nil
}

// RemovePlaylist deletes a playlist; its songs stay in the library
func (l *Library) RemovePlaylist(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.playlistMap[name]
	if !ok {
		return playlistNotFound(name)
	}
	if err := l.store.DeletePlaylist(name); err != nil {
		return storageErr("delete playlist", err)
	}
	l.dropPlaylist(p)
	return nil
}

// AddSongToPlaylist puts a song at the top of a manual playlist, creating the
// playlist when it does not exist. Adding a member again is a no-op.
func (l *Library) AddSongToPlaylist(id int, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.registry[id]
	if !ok {
		return songNotFound(id)
	}
	name, err := playlistName(name)
	if err != nil {
		return err
	}

	p, ok := l.playlistMap[name]
	if !ok {
		p = &Playlist{name: name, kind: KindManual, songs: []*Song{s}}
		if err := l.store.PutPlaylist(p.record()); err != nil {
			return storageErr("put playlist", err)
		}
		l.insertPlaylist(p)
		return nil
	}
	if p.kind == KindAuto {
		return ErrAutoPlaylist
	}
	if slices.Contains(p.songs, s) {
		return nil
	}

	songs := append([]*Song{s}, p.songs...)
	if err := l.store.PutPlaylist(manualRecord(name, songs)); err != nil {
		return storageErr("put playlist", err)
	}
	p.songs = songs
	l.addMembership(s.id, name)
	return nil
}

// RemoveSongFromPlaylist takes a song out of a manual playlist
func (l *Library) RemoveSongFromPlaylist(id int, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.registry[id]
	if !ok {
		return songNotFound(id)
	}
	p, ok := l.playlistMap[name]
	if !ok {
		return playlistNotFound(name)
	}
	if p.kind == KindAuto {
		return ErrAutoPlaylist
	}
	if !slices.Contains(p.songs, s) {
		return &NotFoundError{Kind: "playlist entry", Name: fmt.Sprintf("%s/%d", name, id)}
	}
	return l.removeFromPlaylist(p, s)
}

// removeFromPlaylist is the cascade path: a song that is not a member is
// ignored.
func (l *Library) removeFromPlaylist(p *Playlist, s *Song) error {
	i := slices.Index(p.songs, s)
	if p.kind != KindManual || i < 0 {
		l.removeMembership(s.id, p.name)
		return nil
	}

	songs := slices.Delete(slices.Clone(p.songs), i, i+1)
	if err := l.store.PutPlaylist(manualRecord(p.name, songs)); err != nil {
		return storageErr("put playlist", err)
	}
	p.songs = songs
	l.removeMembership(s.id, p.name)
	return nil
}

// MovePlaylistSong moves the song at position from to position to
func (l *Library) MovePlaylistSong(name string, from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.playlistMap[name]
	if !ok {
		return playlistNotFound(name)
	}
	if p.kind == KindAuto {
		return ErrAutoPlaylist
	}
	if from < 0 || from >= len(p.songs) || to < 0 || to >= len(p.songs) {
		return fmt.Errorf("move %d to %d in %q: %w", from, to, name, ErrInvalidIndex)
	}
	if from == to {
		return nil
	}

	songs := slices.Clone(p.songs)
	s := songs[from]
	songs = slices.Delete(songs, from, from+1)
	songs = slices.Insert(songs, to, s)
	if err := l.store.PutPlaylist(manualRecord(name, songs)); err != nil {
		return storageErr("put playlist", err)
	}
	p.songs = songs
	return nil
}

// Playlists returns every playlist ordered by name
func (l *Library) Playlists() []PlaylistView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]PlaylistView, len(l.playlists))
	for i, p := range l.playlists {
		out[i] = l.playlistView(p)
	}
	return out
}

// Playlist returns one playlist by name
func (l *Library) Playlist(name string) (PlaylistView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.playlistMap[name]
	if !ok {
		return PlaylistView{}, playlistNotFound(name)
	}
	return l.playlistView(p), nil
}

// PlaylistsOf returns the names of the manual playlists containing a song
func (l *Library) PlaylistsOf(id int) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.registry[id]; !ok {
		return nil, songNotFound(id)
	}
	return l.membershipNames(id), nil
}
