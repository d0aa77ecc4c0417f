package server

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// Buffer size for streaming (64KB)
	streamBufferSize = 64 * 1024
)

// handleStreamSong streams a song payload with Range support
func (ms *MusicServer) handleStreamSong(w http.ResponseWriter, r *http.Request) {
	id, verr := ms.validateSongID(r.PathValue("id"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	song, err := ms.library.Song(id)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}

	file, err := ms.payloads.Open(id)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	defer file.Close()

	// payloads never change once written, so id and size identify them
	etag := fmt.Sprintf(`"%d-%d"`, id, file.Size)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		ms.handleRangeRequest(w, file, file.Size, rangeHeader)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	ms.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"title":   song.Title,
		"artist":  song.Artist,
	}).Debug("Streaming song")

	buffer := make([]byte, streamBufferSize)
	if _, err := io.CopyBuffer(w, bufio.NewReaderSize(file, streamBufferSize), buffer); err != nil {
		ms.logger.WithError(err).WithField("song_id", id).Debug("Stream interrupted")
	}
}

// handleRangeRequest implements single-range byte serving for seeking
func (ms *MusicServer) handleRangeRequest(w http.ResponseWriter, file io.ReadSeeker, fileSize int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		http.Error(w, "Error seeking payload", http.StatusInternalServerError)
		return
	}

	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.CopyN(w, file, contentLength); err != nil {
		ms.logger.WithError(err).Debug("Range stream interrupted")
	}
}

// parseRange parses a single "bytes=start-end" range. Open ends and suffix
// ranges ("bytes=-500") are supported; ends past the payload are clamped.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	rng, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(rng, ",") || size <= 0 {
		return 0, 0, false
	}
	first, last, found := strings.Cut(strings.TrimSpace(rng), "-")
	if !found {
		return 0, 0, false
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		return max(size-n, 0), size - 1, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if last != "" {
		e, err := strconv.ParseInt(last, 10, 64)
		if err != nil || e < start {
			return 0, 0, false
		}
		end = min(e, size-1)
	}
	return start, end, true
}
