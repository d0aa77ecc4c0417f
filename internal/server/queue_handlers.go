package server

import (
	"net/http"
	"time"

	"legato/internal/library"
	"legato/internal/queue"
	"legato/pkg/models"
)

// QueueEntry is one row of the queue listing
type QueueEntry struct {
	Key  uint64      `json:"key"`
	Song models.Song `json:"song"`
}

// QueueResponse is the JSON form of a queue snapshot
type QueueResponse struct {
	State            queue.State  `json:"state"`
	Index            int          `json:"index"`
	PositionSeconds  float64      `json:"positionSeconds"`
	Loop             bool         `json:"loop"`
	ShuffleOnEnqueue bool         `json:"shuffleOnEnqueue"`
	Entries          []QueueEntry `json:"entries"`
}

func queueResponse(snap queue.Snapshot) QueueResponse {
	entries := make([]QueueEntry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = QueueEntry{Key: e.Key, Song: e.Song}
	}
	return QueueResponse{
		State:            snap.State,
		Index:            snap.Index,
		PositionSeconds:  snap.Position.Seconds(),
		Loop:             snap.Loop,
		ShuffleOnEnqueue: snap.ShuffleOnEnqueue,
		Entries:          entries,
	}
}

func (ms *MusicServer) respondWithQueue(w http.ResponseWriter) {
	ms.respondJSON(w, http.StatusOK, queueResponse(ms.queue.Snapshot()))
}

// queueAction runs a queue operation and answers with the resulting queue
func (ms *MusicServer) queueAction(w http.ResponseWriter, r *http.Request, op func() error) {
	if err := op(); err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	ms.respondWithQueue(w)
}

func (ms *MusicServer) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	ms.respondWithQueue(w)
}

// handleEnqueue adds songs by id, the songs of a view, or both
func (ms *MusicServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SongIDs []int  `json:"songIds"`
		View    string `json:"view,omitempty"`
		Name    string `json:"name,omitempty"`
		Query   string `json:"q,omitempty"`
		Mode    string `json:"mode,omitempty"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}

	mode, err := queue.ParseMode(req.Mode)
	if err != nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "mode",
			Message: err.Error(),
			Code:    "INVALID_MODE",
		}})
		return
	}

	songs, err := ms.songsByID(req.SongIDs)
	if err != nil {
		ms.respondWithDomainError(w, r, err)
		return
	}
	if req.View != "" {
		viewSongs, err := ms.library.FilteredSongs(library.View{Kind: library.ViewKind(req.View), Name: req.Name}, req.Query)
		if err != nil {
			ms.respondWithDomainError(w, r, err)
			return
		}
		songs = append(songs, viewSongs...)
	}
	if len(songs) == 0 {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "songIds",
			Message: "Nothing to enqueue",
			Code:    "EMPTY_ENQUEUE",
		}})
		return
	}

	ms.queue.Enqueue(songs, mode)
	ms.respondWithQueue(w)
}

func (ms *MusicServer) handleRemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	index, verr := ms.validateQueueIndex(r.PathValue("index"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	ms.queueAction(w, r, func() error { return ms.queue.Remove(index) })
}

func (ms *MusicServer) handleMoveInQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	ms.queueAction(w, r, func() error { return ms.queue.Reorder(req.From, req.To) })
}

func (ms *MusicServer) handleShuffleQueue(w http.ResponseWriter, r *http.Request) {
	ms.queueAction(w, r, ms.queue.Shuffle)
}

func (ms *MusicServer) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	ms.queue.Clear()
	ms.respondWithQueue(w)
}

func (ms *MusicServer) handleNext(w http.ResponseWriter, r *http.Request) {
	ms.queueAction(w, r, ms.queue.Next)
}

func (ms *MusicServer) handlePrevious(w http.ResponseWriter, r *http.Request) {
	ms.queueAction(w, r, ms.queue.Previous)
}

func (ms *MusicServer) handlePlayAt(w http.ResponseWriter, r *http.Request) {
	index, verr := ms.validateQueueIndex(r.PathValue("index"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	ms.queueAction(w, r, func() error { return ms.queue.PlayAt(index) })
}

func (ms *MusicServer) handlePause(w http.ResponseWriter, r *http.Request) {
	ms.queueAction(w, r, ms.queue.Pause)
}

func (ms *MusicServer) handleResume(w http.ResponseWriter, r *http.Request) {
	ms.queueAction(w, r, ms.queue.Resume)
}

func (ms *MusicServer) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	pos := time.Duration(req.Seconds * float64(time.Second))
	ms.queueAction(w, r, func() error { return ms.queue.Seek(pos) })
}

// handleSetLoop updates the loop and shuffle-on-enqueue settings
func (ms *MusicServer) handleSetLoop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Loop             *bool `json:"loop,omitempty"`
		ShuffleOnEnqueue *bool `json:"shuffleOnEnqueue,omitempty"`
	}
	if !ms.decodeJSON(w, r, &req) {
		return
	}
	if req.Loop != nil {
		ms.queue.SetLoop(*req.Loop)
	}
	if req.ShuffleOnEnqueue != nil {
		ms.queue.SetShuffleOnEnqueue(*req.ShuffleOnEnqueue)
	}
	ms.respondWithQueue(w)
}
