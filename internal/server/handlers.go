package server

import (
	"net/http"
	"path/filepath"

	"legato/internal/library"
	"legato/pkg/models"
)

// handleHome serves the main SPA / index file from the configured static dir.
func (ms *MusicServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(ms.config.Server.StaticDir, "index.html"))
}

// handleGetSongs returns the songs of a view filtered by a search query.
// Without a view the whole library is listed.
func (ms *MusicServer) handleGetSongs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	if verr := ms.validateSearchQuery(query); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	view := library.View{
		Kind:   library.ViewKind(params.Get("view")),
		Name:   sanitizeInput(params.Get("name")),
		Artist: sanitizeInput(params.Get("artist")),
	}
	if view.Kind != "" && view.Kind != library.ViewAll && view.Name == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "name",
			Message: "A view name is required for " + string(view.Kind) + " views",
			Code:    "MISSING_VIEW_NAME",
		}})
		return
	}

	songs, err := ms.library.FilteredSongs(view, query)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, songs)
}

func (ms *MusicServer) handleGetSong(w http.ResponseWriter, r *http.Request) {
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
	ms.respondJSON(w, http.StatusOK, song)
}

// handleEditSong applies a partial tag edit
func (ms *MusicServer) handleEditSong(w http.ResponseWriter, r *http.Request) {
	id, verr := ms.validateSongID(r.PathValue("id"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var edit library.Edit
	if !ms.decodeJSON(w, r, &edit) {
		return
	}
	if edit.Title == nil && edit.Artist == nil && edit.Album == nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "body",
			Message: "At least one of title, artist or album is required",
			Code:    "EMPTY_EDIT",
		}})
		return
	}

	song, err := ms.library.Edit(id, edit)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, song)
}

// handleBulkEdit re-tags several songs with the same artist and/or album
func (ms *MusicServer) handleBulkEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []int   `json:"ids"`
		Artist *string `json:"artist,omitempty"`
		Album  *string `json:"album,omitempty"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 || (req.Artist == nil && req.Album == nil) {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "body",
			Message: "ids and one of artist or album are required",
			Code:    "INVALID_BULK_EDIT",
		}})
		return
	}

	edited, err := ms.library.BulkEdit(req.IDs, library.Edit{Artist: req.Artist, Album: req.Album})
	if err != nil {
		ms.respondJSON(w, statusFor(err), map[string]interface{}{
			"error":   err.Error(),
			"edited":  edited,
			"success": false,
		})
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"edited":  edited,
		"success": true,
	})
}

func (ms *MusicServer) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id, verr := ms.validateSongID(r.PathValue("id"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if err := ms.library.RemoveSong(id); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Song removed",
		"success": true,
	})
}

func (ms *MusicServer) handleGetSongPlaylists(w http.ResponseWriter, r *http.Request) {
	id, verr := ms.validateSongID(r.PathValue("id"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	names, err := ms.library.PlaylistsOf(id)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, names)
}

func (ms *MusicServer) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, http.StatusOK, ms.library.Artists())
}

func (ms *MusicServer) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	artist, err := ms.library.Artist(r.PathValue("name"))
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, artist)
}

func (ms *MusicServer) handleGetAlbums(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, http.StatusOK, ms.library.Albums())
}

func (ms *MusicServer) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := ms.library.Album(r.PathValue("name"))
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, album)
}

// songsByID resolves ids to library records, failing on the first unknown id
func (ms *MusicServer) songsByID(ids []int) ([]models.Song, error) {
	songs := make([]models.Song, 0, len(ids))
	for _, id := range ids {
		song, err := ms.library.Song(id)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}
