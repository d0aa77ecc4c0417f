package library

import (
	"legato/internal/sorted"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

// Edit describes a tag change. Nil fields are left untouched.
type Edit struct {
	Title  *string `json:"title,omitempty"`
	Artist *string `json:"artist,omitempty"`
	Album  *string `json:"album,omitempty"`
}

// SetArtist re-credits a song. Setting the current value is a no-op.
func (l *Library) SetArtist(id int, artist string) error {
	_, err := l.Edit(id, Edit{Artist: &artist})
	return err
}

// SetAlbum moves a song to another album. Setting the current value is a no-op.
func (l *Library) SetAlbum(id int, album string) error {
	_, err := l.Edit(id, Edit{Album: &album})
	return err
}

// SetTitle renames a song and re-sorts it everywhere it is listed.
func (l *Library) SetTitle(id int, title string) error {
	_, err := l.Edit(id, Edit{Title: &title})
	return err
}

// Edit applies e to one song with a single persistence call and returns the
// updated record.
func (l *Library) Edit(id int, e Edit) (models.Song, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.registry[id]
	if !ok {
		return models.Song{}, songNotFound(id)
	}
	if err := l.retag(s, e); err != nil {
		return models.Song{}, err
	}
	return s.Record(), nil
}

// BulkEdit applies e to each song in order and stops at the first failure.
// It returns the number of songs edited.
func (l *Library) BulkEdit(ids []int, e Edit) (int, error) {
	for i, id := range ids {
		if _, err := l.Edit(id, e); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// retag persists the new record first, then moves s between groups.
func (l *Library) retag(s *Song, e Edit) error {
	next := s.Record()
	if e.Title != nil {
		next.Title = orUnknown(*e.Title)
	}
	if e.Artist != nil {
		next.Artist = orUnknown(*e.Artist)
	}
	if e.Album != nil {
		next.Album = orUnknown(*e.Album)
	}
	if next == s.Record() {
		return nil
	}

	if err := l.store.PutSong(next); err != nil {
		return storageErr("put song", err)
	}

	l.detach(s)
	if next.Title != s.title {
		l.songs, _ = sorted.Remove(l.songs, s, l.byTitle)
		s.title = next.Title
		l.songs = sorted.Insert(l.songs, s, l.byTitle)
	}
	s.album = next.Album
	if next.Artist != s.artist {
		s.setArtist(next.Artist)
	}
	l.attach(s)

	l.logger.WithFields(logrus.Fields{
		"song_id": s.id,
		"title":   s.title,
		"artist":  s.artist,
		"album":   s.album,
	}).Debug("Retagged song")
	return nil
}
