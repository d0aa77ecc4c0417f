package server

import (
	"net/http"
)

// handleAlbumArt resolves the cover image URL of an album. With redirect=1
// the client is sent straight to the image.
func (ms *MusicServer) handleAlbumArt(w http.ResponseWriter, r *http.Request) {
	if ms.coverArt == nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Cover art lookups are disabled", nil)
		return
	}

	artist := sanitizeInput(r.URL.Query().Get("artist"))
	album := sanitizeInput(r.URL.Query().Get("album"))
	if artist == "" || album == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "album",
			Message: "artist and album are required",
			Code:    "MISSING_ALBUM",
		}})
		return
	}

	art, err := ms.coverArt.Lookup(r.Context(), artist, album)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadGateway, "Cover art lookup failed", err)
		return
	}
	if art == "" {
		ms.respondWithError(w, r, http.StatusNotFound, "No cover art found", nil)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, art, http.StatusFound)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]string{"url": art})
}
