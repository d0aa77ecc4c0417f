package player

import (
	"context"
	"sync"
	"time"

	"legato/internal/queue"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

// State represents the current player state
type State struct {
	Current         *models.Song `json:"current,omitempty"`
	State           queue.State  `json:"state"`
	Index           int          `json:"index"`
	Length          int          `json:"length"`
	Loop            bool         `json:"loop"`
	ShuffleOnAdd    bool         `json:"shuffleOnEnqueue"`
	PositionSeconds float64      `json:"positionSeconds"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// StateFromSnapshot derives the published state from a queue snapshot
func StateFromSnapshot(snap queue.Snapshot) State {
	st := State{
		State:           snap.State,
		Index:           snap.Index,
		Length:          len(snap.Entries),
		Loop:            snap.Loop,
		ShuffleOnAdd:    snap.ShuffleOnEnqueue,
		PositionSeconds: snap.Position.Seconds(),
		UpdatedAt:       time.Now(),
	}
	if cur, ok := snap.Current(); ok {
		song := cur.Song
		st.Current = &song
	}
	return st
}

// Source is the queue as seen by the state manager
type Source interface {
	Poll()
	Snapshot() queue.Snapshot
}

// StateManager keeps the latest player state and fans changes out to
// subscribers. Slow subscribers are dropped rather than blocking publishers.
type StateManager struct {
	state     State
	mutex     sync.RWMutex
	listeners []chan State
	logger    *logrus.Logger
}

// NewStateManager creates a new player state manager
func NewStateManager(logger *logrus.Logger) *StateManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &StateManager{
		state: State{
			State:     queue.Idle,
			Index:     -1,
			UpdatedAt: time.Now(),
		},
		logger: logger,
	}
}

// GetState returns a copy of the current player state
func (sm *StateManager) GetState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	st := sm.state
	if st.Current != nil {
		song := *st.Current
		st.Current = &song
	}
	return st
}

// Publish replaces the state with one derived from snap. It is registered as
// a queue observer.
func (sm *StateManager) Publish(snap queue.Snapshot) {
	sm.set(StateFromSnapshot(snap))
}

// UpdatePosition refreshes the playback position without other changes
func (sm *StateManager) UpdatePosition(pos time.Duration) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.state.PositionSeconds == pos.Seconds() {
		return
	}
	sm.state.PositionSeconds = pos.Seconds()
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

func (sm *StateManager) set(st State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state = st
	sm.notifyListeners()
}

// Subscribe adds a listener for state changes
func (sm *StateManager) Subscribe() <-chan State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan State, 10)
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener. Listeners already dropped for being slow
// are ignored.
func (sm *StateManager) Unsubscribe(ch <-chan State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of attached listeners
func (sm *StateManager) Subscribers() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return len(sm.listeners)
}

// notifyListeners must be called with the lock held
func (sm *StateManager) notifyListeners() {
	kept := sm.listeners[:0]
	for _, listener := range sm.listeners {
		st := sm.state
		if st.Current != nil {
			song := *st.Current
			st.Current = &song
		}
		select {
		case listener <- st:
			kept = append(kept, listener)
		default:
			close(listener)
			sm.logger.Debug("Dropped slow player state subscriber")
		}
	}
	clear(sm.listeners[len(kept):])
	sm.listeners = kept
}

// Run polls src every interval so finished songs advance the queue, and
// publishes the playback position while something is playing. It returns
// when ctx is done.
func (sm *StateManager) Run(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			src.Poll()
			snap := src.Snapshot()
			if snap.State == queue.Playing {
				sm.UpdatePosition(snap.Position)
			}
		}
	}
}
