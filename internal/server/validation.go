package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"legato/internal/library"
	"legato/internal/payload"
	"legato/internal/queue"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON writes v with the given status
func (ms *MusicServer) respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Warn("Failed to encode response")
	}
}

// respondWithValidationError sends a structured validation error response
func (ms *MusicServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"request_id": requestID(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"errors":     errors,
	}).Warn("Validation failed")

	ms.respondJSON(w, http.StatusBadRequest, ValidationResult{
		Valid:  false,
		Errors: errors,
	})
}

// respondWithError sends a structured error response
func (ms *MusicServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"request_id":  requestID(r),
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	ms.respondJSON(w, statusCode, map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// respondWithDomainError maps library and queue errors to HTTP statuses
func (ms *MusicServer) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ms.respondWithError(w, r, statusFor(err), err.Error(), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound), errors.Is(err, payload.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, library.ErrAutoPlaylist),
		errors.Is(err, library.ErrManualPlaylist),
		errors.Is(err, library.ErrEmptyName),
		errors.Is(err, library.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrIndexOutOfRange),
		errors.Is(err, queue.ErrQueueEmpty),
		errors.Is(err, queue.ErrNotPlaying):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v
func (ms *MusicServer) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "body",
			Message: "Request body must be valid JSON",
			Code:    "INVALID_JSON",
		}})
		return false
	}
	return true
}

// validateSongID parses a song id path value
func (ms *MusicServer) validateSongID(raw string) (int, *ValidationError) {
	return validatePositiveInt("song_id", "Song ID", raw)
}

// validateQueueIndex parses a zero-based queue position
func (ms *MusicServer) validateQueueIndex(raw string) (int, *ValidationError) {
	if raw == "" {
		return 0, &ValidationError{Field: "index", Message: "Queue index is required", Code: "MISSING_INDEX"}
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, &ValidationError{Field: "index", Message: "Queue index must be a non-negative integer", Code: "INVALID_INDEX"}
	}
	return index, nil
}

func validatePositiveInt(field, label, raw string) (int, *ValidationError) {
	code := strings.ToUpper(field)
	if raw == "" {
		return 0, &ValidationError{
			Field:   field,
			Message: label + " cannot be empty",
			Code:    "EMPTY_" + code,
		}
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{
			Field:   field,
			Message: label + " must be a valid integer",
			Code:    "INVALID_" + code + "_FORMAT",
		}
	}

	if value <= 0 {
		return 0, &ValidationError{
			Field:   field,
			Message: label + " must be positive",
			Code:    "INVALID_" + code + "_VALUE",
		}
	}

	return value, nil
}

// validateSearchQuery validates search query parameters
func (ms *MusicServer) validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "q",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "q",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validateInboxPath ensures a file path is within the configured inbox
func (ms *MusicServer) validateInboxPath(filePath string) *ValidationError {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Invalid file path",
			Code:    "INVALID_FILE_PATH",
		}
	}

	absInbox, err := filepath.Abs(ms.config.Inbox.Path)
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Server configuration error",
			Code:    "CONFIG_ERROR",
		}
	}

	relPath, err := filepath.Rel(absInbox, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return &ValidationError{
			Field:   "file_path",
			Message: "File path outside allowed directory",
			Code:    "PATH_TRAVERSAL_DENIED",
		}
	}

	return nil
}

// validatePlaylistName validates playlist name
func (ms *MusicServer) validatePlaylistName(name string) *ValidationError {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name is required",
			Code:    "MISSING_PLAYLIST_NAME",
		}
	}

	if len(name) > 255 {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name too long (max 255 characters)",
			Code:    "PLAYLIST_NAME_TOO_LONG",
		}
	}

	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name contains invalid characters",
			Code:    "INVALID_PLAYLIST_NAME_CHARACTERS",
		}
	}

	return nil
}

// validateContentType checks an uploaded file name against the supported formats
func (ms *MusicServer) validateContentType(fileName string) *ValidationError {
	if !ms.extractor.IsAudioFile(fileName) {
		return &ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("Unsupported file type: %s", strings.ToLower(filepath.Ext(fileName))),
			Code:    "UNSUPPORTED_FILE_TYPE",
		}
	}

	return nil
}

// sanitizeInput strips null bytes and surrounding whitespace
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
