package testutil

import (
	"sync"

	"github.com/roach88/tether/internal/snapshot"
	"github.com/roach88/tether/internal/store"
)

// Frame is one recorded broadcast.
type Frame struct {
	Snapshot   snapshot.Snapshot
	Recipients []string
}

// RecordingBroadcaster keeps every snapshot it is asked to broadcast.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	frames []Frame
	notify chan struct{}
}

// NewRecordingBroadcaster creates an empty recorder.
func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{notify: make(chan struct{}, 1)}
}

// Broadcast implements engine.Broadcaster.
func (r *RecordingBroadcaster) Broadcast(snap snapshot.Snapshot, recipients []string) {
	r.mu.Lock()
	r.frames = append(r.frames, Frame{
		Snapshot:   snap,
		Recipients: append([]string(nil), recipients...),
	})
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Frames returns a copy of everything recorded so far.
func (r *RecordingBroadcaster) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Len returns the number of recorded broadcasts.
func (r *RecordingBroadcaster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Last returns the most recent broadcast.
func (r *RecordingBroadcaster) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Notify signals after each broadcast. Signals coalesce.
func (r *RecordingBroadcaster) Notify() <-chan struct{} {
	return r.notify
}

// RecordingJournal keeps journal entries in memory.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingJournal struct {
	mu      sync.Mutex
	entries []store.Entry
}

// Record implements engine.Journal.
func (j *RecordingJournal) Record(e store.Entry) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return true
}

// Entries returns a copy of the recorded entries in order.
func (j *RecordingJournal) Entries() []store.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]store.Entry(nil), j.entries...)
}

// Kinds returns the kinds of the recorded entries in order.
func (j *RecordingJournal) Kinds() []store.Kind {
	j.mu.Lock()
	defer j.mu.Unlock()
	kinds := make([]store.Kind, len(j.entries))
	for i, e := range j.entries {
		kinds[i] = e.Kind
	}
	return kinds
}
