package library

import "legato/pkg/models"

// Store persists song and playlist records. Every call is atomic per record.
type Store interface {
	GetAllSongs() ([]models.Song, error)
	PutSong(song models.Song) error
	DeleteSong(id int) error

	GetAllPlaylists() ([]models.PlaylistRecord, error)
	PutPlaylist(playlist models.PlaylistRecord) error
	DeletePlaylist(name string) error

	// Reset drops and recreates all persisted data
	Reset() error
}

// PayloadStore keeps the raw audio bytes of every song, keyed by song id.
// Deleting a missing payload returns an error matching fs.ErrNotExist.
type PayloadStore interface {
	Put(id int, data []byte, mimeType string) error
	Delete(id int) error
	Clear() error
}
