package library

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every *StorageError
	ErrStorage = errors.New("storage failure")
	// ErrNotFound matches every *NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrNameConflict matches every *NameConflictError
	ErrNameConflict = errors.New("name already in use")
	// ErrAutoPlaylist is returned when editing the song list of a query playlist
	ErrAutoPlaylist = errors.New("auto playlist membership is computed from its query")
	// ErrManualPlaylist is returned when setting the query of a manual playlist
	ErrManualPlaylist = errors.New("manual playlist has no query")
	// ErrEmptyName is returned for blank playlist names
	ErrEmptyName = errors.New("playlist name is empty")
	// ErrInvalidIndex is returned for positions outside a playlist
	ErrInvalidIndex = errors.New("index out of range")
)

// StorageError wraps a failed persistence or payload call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NotFoundError reports a song, playlist, artist or album that does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NameConflictError reports a playlist name that is already taken
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("playlist %q already exists", e.Name)
}

func (e *NameConflictError) Is(target error) bool { return target == ErrNameConflict }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func songNotFound(id int) error {
	return &NotFoundError{Kind: "song", Name: fmt.Sprint(id)}
}

func playlistNotFound(name string) error {
	return &NotFoundError{Kind: "playlist", Name: name}
}
