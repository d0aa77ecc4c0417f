package queue

import (
	"sync"
	"time"

	"legato/pkg/models"
)

// Handle controls playback of one queue entry. A handle is created the first
// time its entry is played and reused for every later play of that entry.
type Handle interface {
	Play()
	Pause()
	Stop()
	Seek(pos time.Duration)
	Position() time.Duration
}

// HandleFactory creates the handle for a song
type HandleFactory func(song models.Song) Handle

// VirtualHandle tracks a playback position against the wall clock without
// decoding any audio. Clients stream the payload themselves and the server
// keeps time.
type VirtualHandle struct {
	mu       sync.Mutex
	duration time.Duration
	offset   time.Duration
	started  time.Time
	playing  bool
	now      func() time.Time
}

// NewVirtualHandle creates a stopped handle for a song of the given length.
// A zero duration means the length is unknown and the position is not capped.
func NewVirtualHandle(duration time.Duration) *VirtualHandle {
	return &VirtualHandle{duration: duration, now: time.Now}
}

// VirtualFactory is the HandleFactory used when no audio backend is present
func VirtualFactory(song models.Song) Handle {
	return NewVirtualHandle(time.Duration(song.Duration) * time.Second)
}

func (h *VirtualHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing {
		return
	}
	h.started = h.now()
	h.playing = true
}

func (h *VirtualHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = h.position()
	h.playing = false
}

// Stop pauses and rewinds to the start
func (h *VirtualHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = 0
	h.playing = false
}

func (h *VirtualHandle) Seek(pos time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = h.clamp(pos)
	if h.playing {
		h.started = h.now()
	}
}

func (h *VirtualHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position()
}

func (h *VirtualHandle) position() time.Duration {
	pos := h.offset
	if h.playing {
		pos += h.now().Sub(h.started)
	}
	return h.clamp(pos)
}

func (h *VirtualHandle) clamp(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if h.duration > 0 && pos > h.duration {
		return h.duration
	}
	return pos
}
