package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"legato/internal/player"
)

// sseKeepAlive is how often an idle event stream gets a comment line
const sseKeepAlive = 15 * time.Second

// handleGetPlayerState returns the current player state
func (ms *MusicServer) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, http.StatusOK, ms.playerState.GetState())
}

// handlePlayerEvents streams player state changes as server-sent events,
// starting with the current state.
func (ms *MusicServer) handlePlayerEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates := ms.playerState.Subscribe()
	defer ms.playerState.Unsubscribe(updates)

	if err := writeStateEvent(w, ms.playerState.GetState()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				// dropped for falling behind; the client reconnects
				return
			}
			if err := writeStateEvent(w, st); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeStateEvent(w http.ResponseWriter, st player.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
