package server

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// settleDelay gives writers time to finish a file before it is read
const settleDelay = 500 * time.Millisecond

// ScanInbox imports every supported audio file under the inbox directory and
// returns how many songs were added.
func (ms *MusicServer) ScanInbox() (int, error) {
	root := ms.config.Inbox.Path
	if err := os.MkdirAll(root, 0755); err != nil {
		return 0, err
	}

	ms.logger.WithField("inbox", root).Info("Scanning inbox")
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ms.extractor.IsAudioFile(path) {
			return nil
		}
		if ms.ingestFile(path) {
			added++
		}
		return nil
	})

	ms.logger.WithFields(logrus.Fields{"inbox": root, "added": added}).Info("Inbox scan finished")
	return added, err
}

// startFileWatcher initializes fsnotify watcher for recursive inbox monitoring.
func (ms *MusicServer) startFileWatcher() error {
	if err := os.MkdirAll(ms.config.Inbox.Path, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ms.watcher = watcher

	go ms.watchFiles(watcher)

	if err := ms.addDirectoryToWatcher(ms.config.Inbox.Path); err != nil {
		return err
	}

	ms.logger.WithField("inbox", ms.config.Inbox.Path).Info("Inbox watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (ms *MusicServer) addDirectoryToWatcher(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ms.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (ms *MusicServer) watchFiles(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			ms.handleFileEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			ms.logger.WithError(err).Error("Inbox watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates new files to ingestion.
func (ms *MusicServer) handleFileEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Create) && ms.extractor.IsAudioFile(event.Name):
		go func(name string) {
			time.Sleep(settleDelay)
			ms.ingestFile(name)
		}(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := ms.addDirectoryToWatcher(event.Name); err != nil {
				ms.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
				return
			}
			ms.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// ingestFile adds one inbox file to the library. Files whose tags match a
// song already in the library are skipped. It reports whether a song was added.
func (ms *MusicServer) ingestFile(path string) bool {
	if verr := ms.validateInboxPath(path); verr != nil {
		ms.logger.WithField("file_path", path).Warn(verr.Message)
		return false
	}
	if _, busy := ms.ingesting.LoadOrStore(path, struct{}{}); busy {
		return false
	}
	defer ms.ingesting.Delete(path)

	meta, data, err := ms.extractor.ExtractFromFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			ms.logger.WithError(err).WithField("file_path", path).Error("Error reading inbox file")
		}
		return false
	}

	if ms.library.Contains(meta) {
		ms.logger.WithField("file_path", path).Debug("Song already in library")
		ms.removeImported(path)
		return false
	}

	song, err := ms.library.AddSong(meta, data, meta.MimeType)
	if err != nil {
		ms.logger.WithError(err).WithField("file_path", path).Error("Error adding inbox file to library")
		return false
	}

	ms.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"artist":  song.Artist,
		"title":   song.Title,
		"album":   song.Album,
	}).Info("Imported song from inbox")
	ms.removeImported(path)
	return true
}

func (ms *MusicServer) removeImported(path string) {
	if !ms.config.Inbox.DeleteAfterImport {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		ms.logger.WithError(err).WithField("file_path", path).Warn("Could not delete imported file")
	}
}

// stopFileWatcher closes the watcher (idempotent).
func (ms *MusicServer) stopFileWatcher() {
	if ms.watcher != nil {
		ms.watcher.Close()
	}
}
