package server

import (
	"errors"
	"net/http"

	"legato/internal/library"

	"github.com/samber/lo"
)

// PlaylistSummary is one row of the playlist listing
type PlaylistSummary struct {
	Name      string       `json:"name"`
	Kind      library.Kind `json:"kind"`
	Query     string       `json:"query,omitempty"`
	SongCount int          `json:"songCount"`
}

// handleGetPlaylists returns every playlist with its song count
func (ms *MusicServer) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	summaries := lo.Map(ms.library.Playlists(), func(p library.PlaylistView, _ int) PlaylistSummary {
		return PlaylistSummary{Name: p.Name, Kind: p.Kind, Query: p.Query, SongCount: len(p.Songs)}
	})
	ms.respondJSON(w, http.StatusOK, summaries)
}

func (ms *MusicServer) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	view, err := ms.library.Playlist(r.PathValue("name"))
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

// handleCreatePlaylist creates a manual playlist, or an auto playlist when a
// query is given. An existing playlist of the same kind is returned as is.
func (ms *MusicServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Query string `json:"query,omitempty"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	req.Name = sanitizeInput(req.Name)
	if verr := ms.validatePlaylistName(req.Name); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var (
		view library.PlaylistView
		err  error
	)
	if req.Query != "" {
		if verr := ms.validateSearchQuery(req.Query); verr != nil {
			ms.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		view, err = ms.library.CreateAutoPlaylist(req.Name, req.Query)
	} else {
		view, err = ms.library.CreatePlaylist(req.Name)
	}
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

// handleUpdatePlaylist renames a playlist and/or replaces an auto playlist query
func (ms *MusicServer) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req struct {
		Name  *string `json:"name,omitempty"`
		Query *string `json:"query,omitempty"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}

	if req.Query != nil {
		if verr := ms.validateSearchQuery(*req.Query); verr != nil {
			ms.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		if err := ms.library.UpdateAutoPlaylist(name, *req.Query); err != nil {
			ms.respondWithDomainError(w, r, err)
			return
		}
	}

	if req.Name != nil {
		newName := sanitizeInput(*req.Name)
		if verr := ms.validatePlaylistName(newName); verr != nil {
			ms.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		if err := ms.library.RenamePlaylist(name, newName); err != nil {
			ms.respondWithDomainError(w, r, err)
			return
		}
		name = newName
	}

	view, err := ms.library.Playlist(name)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

func (ms *MusicServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := ms.library.RemovePlaylist(r.PathValue("name")); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Playlist removed",
		"success": true,
	})
}

// handleAddSongToPlaylist puts a song at the top of a manual playlist,
// creating the playlist if needed.
func (ms *MusicServer) handleAddSongToPlaylist(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	if verr := ms.validatePlaylistName(name); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	var req struct {
		SongID int `json:"songId"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	if req.SongID <= 0 {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "songId",
			Message: "Song ID must be positive",
			Code:    "INVALID_SONG_ID_VALUE",
		}})
		return
	}

	if err := ms.library.AddSongToPlaylist(req.SongID, name); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	view, err := ms.library.Playlist(name)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

func (ms *MusicServer) handleRemoveSongFromPlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := ms.validateSongID(r.PathValue("id"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	name := r.PathValue("name")
	if err := ms.library.RemoveSongFromPlaylist(id, name); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	view, err := ms.library.Playlist(name)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

func (ms *MusicServer) handleMovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	if err := ms.library.MovePlaylistSong(name, req.From, req.To); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	view, err := ms.library.Playlist(name)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondJSON(w, http.StatusOK, view)
}

// handleExportPlaylists downloads the named playlists, or all of them
func (ms *MusicServer) handleExportPlaylists(w http.ResponseWriter, r *http.Request) {
	doc, err := ms.library.ExportPlaylists(r.URL.Query()["name"]...)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="legato-playlists.json"`)
	ms.respondJSON(w, http.StatusOK, doc)
}

// handleImportPlaylists merges an exported document into the library
func (ms *MusicServer) handleImportPlaylists(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportSize)
	result, err := ms.library.ImportPlaylistsJSON(body)
	if err != nil {
		if errors.Is(err, library.ErrStorage) {
			ms.respondWithDomainError(w, r, err)
			return
		}
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid export document", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, result)
}
