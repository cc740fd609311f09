package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/tether/internal/physics"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventConnect creates a session. It carries a reply channel.
	EventConnect EventType = iota + 1
	// EventDisconnect destroys a session.
	EventDisconnect
	// EventCursorMove moves a session's cursor.
	EventCursorMove
	// EventPick is a click: a pick, or a bind step when IsBind is set.
	EventPick
	// EventRelease drops the pick constraint.
	EventRelease
	// EventSpawn drops a crate into the world.
	EventSpawn
	// EventClearCollision lowers a body's colliding flag once its delay
	// has passed.
	EventClearCollision
)

// String returns the event name used in logs.
func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventCursorMove:
		return "cursorMove"
	case EventPick:
		return "pick"
	case EventRelease:
		return "release"
	case EventSpawn:
		return "spawnAt"
	case EventClearCollision:
		return "clearCollision"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// carriesPoint reports whether the event's Point is a world position.
func (t EventType) carriesPoint() bool {
	return t == EventCursorMove || t == EventPick || t == EventSpawn
}

// Event is one world mutation waiting for the Run loop.
type Event struct {
	Type          EventType
	ConnectionID  string
	ParticipantID string
	Point         physics.Vec
	IsBind        bool

	// BodyID and Generation identify a due collision clear.
	BodyID     uint64
	Generation uint64

	// reply receives the outcome of a synchronous event. Buffered, size 1.
	reply chan error
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded: transport readers must never block on the
// engine, and the engine never blocks on a slow client.
//
// Thread-safety is provided for external enqueuing (connection readers,
// collision timers) while the Engine's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not pin the reply channel.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
