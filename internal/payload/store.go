// Package payload stores the audio bytes of each song on disk, keyed by song id.
package payload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for ids without a stored payload. It matches
// fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("payload not found: %w", fs.ErrNotExist)

const (
	mimeSuffix      = ".mime"
	defaultMimeType = "application/octet-stream"
)

// Store keeps one data file and one mime sidecar per song under dir
type Store struct {
	dir    string
	logger *logrus.Logger
}

// File is an open payload
type File struct {
	io.ReadSeekCloser
	Size     int64
	MimeType string
}

// NewStore creates the payload directory if needed
func NewStore(dir string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create payload directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory payloads are kept in
func (s *Store) Dir() string { return s.dir }

func (s *Store) dataPath(id int) string { return filepath.Join(s.dir, strconv.Itoa(id)) }

func (s *Store) mimePath(id int) string { return s.dataPath(id) + mimeSuffix }

// Put writes the payload and its mime type, replacing any previous payload
func (s *Store) Put(id int, data []byte, mimeType string) error {
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	if err := s.writeAtomic(s.dataPath(id), data); err != nil {
		return err
	}
	if err := s.writeAtomic(s.mimePath(id), []byte(mimeType)); err != nil {
		os.Remove(s.dataPath(id))
		return err
	}
	s.logger.WithFields(logrus.Fields{"song_id": id, "size": len(data), "mime": mimeType}).Debug("Stored payload")
	return nil
}

// writeAtomic writes to a temp file in the same directory and renames it
// into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move payload into place: %w", err)
	}
	return nil
}

// Get returns the whole payload
func (s *Store) Get(id int) ([]byte, string, error) {
	data, err := os.ReadFile(s.dataPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return data, s.mimeType(id), nil
}

// Open returns a seekable reader over the payload. The caller closes it.
func (s *Store) Open(id int) (*File, error) {
	f, err := os.Open(s.dataPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{ReadSeekCloser: f, Size: info.Size(), MimeType: s.mimeType(id)}, nil
}

// GetRange returns bytes start through end inclusive. An end beyond the
// payload is clamped to its last byte.
func (s *Store) GetRange(id int, start, end int64) ([]byte, error) {
	f, err := s.Open(id)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if start < 0 || start >= f.Size || end < start {
		return nil, fmt.Errorf("invalid range %d-%d for payload of %d bytes", start, end, f.Size)
	}
	end = min(end, f.Size-1)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, end-start+1)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Store) mimeType(id int) string {
	b, err := os.ReadFile(s.mimePath(id))
	if err != nil {
		return defaultMimeType
	}
	if m := strings.TrimSpace(string(b)); m != "" {
		return m
	}
	return defaultMimeType
}

// Delete removes a payload. Deleting a missing payload returns ErrNotFound.
func (s *Store) Delete(id int) error {
	err := os.Remove(s.dataPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		os.Remove(s.mimePath(id))
		return fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := os.Remove(s.mimePath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.WithError(err).WithField("song_id", id).Warn("Failed to remove payload mime type")
	}
	return nil
}

// Clear removes every payload
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	s.logger.WithField("dir", s.dir).Info("Cleared payload store")
	return nil
}

// Check reports whether the payload directory is still usable
func (s *Store) Check() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("payload path %s is not a directory", s.dir)
	}
	return nil
}
