// Package queue implements the playback queue: an ordered list of song
// snapshots and a pointer to the entry that is playing.
package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"legato/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrIndexOutOfRange = errors.New("queue index out of range")
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrNotPlaying      = errors.New("nothing is playing")
)

// State is the transport state of the queue
type State string

const (
	Idle    State = "idle"
	Playing State = "playing"
	Paused  State = "paused"
)

// Mode selects where enqueued songs are inserted
type Mode string

const (
	Append        Mode = "append"
	PlayNext      Mode = "next"
	ShuffleInsert Mode = "shuffle"
)

// ParseMode accepts the mode names used by the HTTP API and the CLI
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", Append:
		return Append, nil
	case PlayNext, ShuffleInsert:
		return m, nil
	}
	return "", fmt.Errorf("unknown enqueue mode %q", s)
}

// Entry is one queued song. Song is a detached copy, so the entry keeps
// playing even after the song leaves the library.
type Entry struct {
	Song   models.Song `json:"song"`
	Key    uint64      `json:"key"`
	handle Handle
}

// Snapshot is a consistent copy of the queue taken under its lock
type Snapshot struct {
	State            State         `json:"state"`
	Index            int           `json:"index"`
	Entries          []Entry       `json:"entries"`
	Position         time.Duration `json:"position"`
	Loop             bool          `json:"loop"`
	ShuffleOnEnqueue bool          `json:"shuffleOnEnqueue"`
}

// Current returns the playing entry of the snapshot
func (s Snapshot) Current() (Entry, bool) {
	if s.Index < 0 || s.Index >= len(s.Entries) {
		return Entry{}, false
	}
	return s.Entries[s.Index], true
}

// Option configures a Queue
type Option func(*Queue)

// WithRand sets the source used by shuffles
func WithRand(r *rand.Rand) Option {
	return func(q *Queue) { q.rand = r }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// WithObserver registers fn to receive a snapshot after every change. fn is
// called without the queue lock held.
func WithObserver(fn func(Snapshot)) Option {
	return func(q *Queue) { q.observers = append(q.observers, fn) }
}

func WithLoop(loop bool) Option {
	return func(q *Queue) { q.loop = loop }
}

func WithShuffleOnEnqueue(shuffle bool) Option {
	return func(q *Queue) { q.shuffleOnEnqueue = shuffle }
}

// Queue is safe for concurrent use. index is -1 or a valid index into
// entries, and always points at the same logical entry across mutations
// unless that entry is removed.
type Queue struct {
	mu               sync.Mutex
	factory          HandleFactory
	entries          []*Entry
	index            int
	nextKey          uint64
	paused           bool
	loop             bool
	shuffleOnEnqueue bool
	rand             *rand.Rand
	logger           *logrus.Logger
	observers        []func(Snapshot)
}

// New creates an idle, empty queue
func New(factory HandleFactory, opts ...Option) *Queue {
	q := &Queue{factory: factory, index: -1}
	for _, opt := range opts {
		opt(q)
	}
	if q.factory == nil {
		q.factory = VirtualFactory
	}
	if q.rand == nil {
		q.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if q.logger == nil {
		q.logger = logrus.New()
	}
	return q
}

// update runs fn under the lock and notifies observers if fn reports a change
func (q *Queue) update(fn func() (bool, error)) error {
	q.mu.Lock()
	changed, err := fn()
	var snap Snapshot
	if changed {
		snap = q.snapshot()
	}
	q.mu.Unlock()

	if changed {
		for _, obs := range q.observers {
			obs(snap)
		}
	}
	return err
}

// Enqueue adds songs in one pass. An idle queue starts playing the first song
// of the batch.
func (q *Queue) Enqueue(songs []models.Song, mode Mode) {
	if len(songs) == 0 {
		return
	}
	q.update(func() (bool, error) {
		batch := make([]*Entry, len(songs))
		for i, song := range songs {
			batch[i] = q.newEntry(song)
		}
		if q.shuffleOnEnqueue {
			q.rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		}
		lead := batch[0]
		wasIdle := q.index < 0

		if mode == PlayNext {
			slices.Reverse(batch)
		}
		for _, e := range batch {
			q.insert(e, q.slotFor(mode))
		}

		q.logger.WithFields(logrus.Fields{"count": len(batch), "mode": mode}).Debug("Enqueued songs")
		if wasIdle {
			q.playAt(slices.Index(q.entries, lead))
		}
		return true, nil
	})
}

func (q *Queue) newEntry(song models.Song) *Entry {
	q.nextKey++
	return &Entry{Song: song, Key: q.nextKey}
}

// slotFor picks the insert position for one song of a batch
func (q *Queue) slotFor(mode Mode) int {
	switch mode {
	case PlayNext:
		return q.index + 1
	case ShuffleInsert:
		lo := q.index + 1
		return lo + q.rand.Intn(len(q.entries)-lo+1)
	}
	return len(q.entries)
}

func (q *Queue) insert(e *Entry, at int) {
	q.entries = slices.Insert(q.entries, at, e)
	if q.index >= 0 && at <= q.index {
		q.index++
	}
}

// Next plays the following entry, wrapping to the start when looping
func (q *Queue) Next() error { return q.Advance(1) }

// Previous plays the preceding entry, wrapping to the end when looping
func (q *Queue) Previous() error { return q.Advance(-1) }

// Advance moves the play position by direction. Leaving the queue without
// loop enabled stops playback.
func (q *Queue) Advance(direction int) error {
	return q.update(func() (bool, error) {
		if len(q.entries) == 0 {
			return false, ErrQueueEmpty
		}
		q.advance(direction)
		return true, nil
	})
}

func (q *Queue) advance(direction int) {
	target := q.index + direction
	if q.loop {
		n := len(q.entries)
		target = ((target % n) + n) % n
	}
	q.playAt(target)
}

// PlayAt plays the entry at i. An index outside the queue stops playback and
// returns ErrIndexOutOfRange.
func (q *Queue) PlayAt(i int) error {
	return q.update(func() (bool, error) {
		q.playAt(i)
		if q.index < 0 {
			return true, fmt.Errorf("play %d of %d: %w", i, len(q.entries), ErrIndexOutOfRange)
		}
		return true, nil
	})
}

// playAt releases the current handle and binds the entry at i, or goes idle
// when i is out of range.
func (q *Queue) playAt(i int) {
	if cur := q.current(); cur != nil && cur.handle != nil {
		cur.handle.Stop()
		cur.handle.Seek(0)
	}
	q.paused = false

	if i < 0 || i >= len(q.entries) {
		if q.index >= 0 {
			q.logger.Debug("Queue finished")
		}
		q.index = -1
		return
	}

	q.index = i
	e := q.entries[i]
	if e.handle == nil {
		e.handle = q.factory(e.Song)
	}
	e.handle.Play()
	q.logger.WithFields(logrus.Fields{"index": i, "song_id": e.Song.ID, "title": e.Song.Title}).Debug("Playing queue entry")
}

func (q *Queue) current() *Entry {
	if q.index < 0 {
		return nil
	}
	return q.entries[q.index]
}

// Remove deletes the entry at i. Removing the playing entry stops playback.
func (q *Queue) Remove(i int) error {
	return q.update(func() (bool, error) {
		if i < 0 || i >= len(q.entries) {
			return false, fmt.Errorf("remove %d of %d: %w", i, len(q.entries), ErrIndexOutOfRange)
		}
		switch {
		case i == q.index:
			q.playAt(-1)
		case i < q.index:
			q.index--
		}
		q.entries = slices.Delete(q.entries, i, i+1)
		return true, nil
	})
}

// Reorder moves the entry at from to position to
func (q *Queue) Reorder(from, to int) error {
	return q.update(func() (bool, error) {
		n := len(q.entries)
		if from < 0 || from >= n || to < 0 || to >= n {
			return false, fmt.Errorf("move %d to %d of %d: %w", from, to, n, ErrIndexOutOfRange)
		}
		if from == to {
			return false, nil
		}
		e := q.entries[from]
		q.entries = slices.Delete(q.entries, from, from+1)
		q.entries = slices.Insert(q.entries, to, e)
		q.index = ReorderIndex(from, to, q.index)
		return true, nil
	})
}

// Shuffle randomizes the queue. The playing entry is moved to the front and
// only the entries after it are shuffled.
func (q *Queue) Shuffle() error {
	return q.update(func() (bool, error) {
		if len(q.entries) == 0 {
			return false, ErrQueueEmpty
		}
		rest := q.entries
		var head []*Entry
		if cur := q.current(); cur != nil {
			head = []*Entry{cur}
			rest = slices.Delete(slices.Clone(q.entries), q.index, q.index+1)
		}
		q.rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		q.entries = append(head, rest...)
		if head != nil {
			q.index = 0
		}
		return true, nil
	})
}

// Clear empties the queue except for the playing entry, which stays as the
// only entry.
func (q *Queue) Clear() {
	q.update(func() (bool, error) {
		if cur := q.current(); cur != nil {
			q.entries = []*Entry{cur}
			q.index = 0
		} else {
			q.entries = nil
		}
		return true, nil
	})
}

// Finished is called by a playback backend when the entry with key reached
// its end. Keys of entries that are no longer playing are ignored.
func (q *Queue) Finished(key uint64) {
	q.update(func() (bool, error) {
		cur := q.current()
		if cur == nil || cur.Key != key {
			return false, nil
		}
		q.advance(1)
		return true, nil
	})
}

// Poll advances past the playing entry once its handle reports a position at
// or beyond the song length. Songs without a known length never finish.
func (q *Queue) Poll() {
	q.mu.Lock()
	cur := q.current()
	var key uint64
	done := cur != nil && !q.paused && cur.handle != nil && cur.Song.Duration > 0 &&
		cur.handle.Position() >= time.Duration(cur.Song.Duration)*time.Second
	if done {
		key = cur.Key
	}
	q.mu.Unlock()

	if done {
		q.Finished(key)
	}
}

func (q *Queue) Pause() error {
	return q.update(func() (bool, error) {
		cur := q.current()
		if cur == nil {
			return false, ErrNotPlaying
		}
		if q.paused {
			return false, nil
		}
		cur.handle.Pause()
		q.paused = true
		return true, nil
	})
}

func (q *Queue) Resume() error {
	return q.update(func() (bool, error) {
		cur := q.current()
		if cur == nil {
			return false, ErrNotPlaying
		}
		if !q.paused {
			return false, nil
		}
		cur.handle.Play()
		q.paused = false
		return true, nil
	})
}

// TogglePause pauses a playing queue and resumes a paused one
func (q *Queue) TogglePause() error {
	q.mu.Lock()
	paused := q.paused
	q.mu.Unlock()
	if paused {
		return q.Resume()
	}
	return q.Pause()
}

// Seek moves the playing entry to pos; negative positions seek to the start
func (q *Queue) Seek(pos time.Duration) error {
	return q.update(func() (bool, error) {
		cur := q.current()
		if cur == nil {
			return false, ErrNotPlaying
		}
		cur.handle.Seek(max(pos, 0))
		return true, nil
	})
}

func (q *Queue) SetLoop(loop bool) {
	q.update(func() (bool, error) {
		changed := q.loop != loop
		q.loop = loop
		return changed, nil
	})
}

func (q *Queue) SetShuffleOnEnqueue(shuffle bool) {
	q.update(func() (bool, error) {
		changed := q.shuffleOnEnqueue != shuffle
		q.shuffleOnEnqueue = shuffle
		return changed, nil
	})
}

// Snapshot returns a copy of the queue
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

func (q *Queue) snapshot() Snapshot {
	s := Snapshot{
		State:            q.state(),
		Index:            q.index,
		Entries:          make([]Entry, len(q.entries)),
		Loop:             q.loop,
		ShuffleOnEnqueue: q.shuffleOnEnqueue,
	}
	for i, e := range q.entries {
		s.Entries[i] = Entry{Song: e.Song, Key: e.Key}
	}
	if cur := q.current(); cur != nil && cur.handle != nil {
		s.Position = cur.handle.Position()
	}
	return s
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state()
}

func (q *Queue) state() State {
	switch {
	case q.index < 0:
		return Idle
	case q.paused:
		return Paused
	}
	return Playing
}

// Current returns the playing entry
func (q *Queue) Current() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur := q.current()
	if cur == nil {
		return Entry{}, false
	}
	return Entry{Song: cur.Song, Key: cur.Key}, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
