package server

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// handleUploadSong adds an uploaded audio file to the library. Optional
// title, artist and album form fields override the file's tags.
func (ms *MusicServer) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Failed to parse upload form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "No file provided", err)
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if verr := ms.validateContentType(fileName); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	meta := ms.extractor.Extract(fileName, bytes.NewReader(data))
	if v := sanitizeInput(r.FormValue("title")); v != "" {
		meta.Title = v
	}
	if v := sanitizeInput(r.FormValue("artist")); v != "" {
		meta.Artist = v
	}
	if v := sanitizeInput(r.FormValue("album")); v != "" {
		meta.Album = v
	}

	song, err := ms.library.AddSong(meta, data, meta.MimeType)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}

	ms.logger.WithFields(logrus.Fields{
		"request_id": requestID(r),
		"song_id":    song.ID,
		"file_name":  fileName,
		"size":       len(data),
	}).Info("Song uploaded")
	ms.respondJSON(w, http.StatusCreated, song)
}
