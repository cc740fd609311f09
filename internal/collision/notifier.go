// Package collision keeps each body's transient colliding flag.
//
// A collision start sets the flag on both bodies and arms a clear after a
// fixed delay; a later collision of the same body re-arms it. The clear
// itself never runs on the timer goroutine. The timer only posts the body id
// and a generation number back to the engine, which calls Clear from its
// own loop. By then the body may be gone, or a newer collision may have
// re-armed the clear; both cases are ignored.
package collision

import (
	"log/slog"
	"time"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/world"
)

// DefaultClearDelay is how long a body stays flagged after its latest
// collision. It is measured from the most recent collision start: a new
// collision before the clear fires restarts the delay, so a body in
// repeated contact stays flagged throughout.
const DefaultClearDelay = 200 * time.Millisecond

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on some other goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the runtime timer heap.
type SystemScheduler struct{}

// AfterFunc implements Scheduler with time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PostFunc hands a due clear back to the world's owner. It is called from
// the scheduler's goroutine and must be safe for that.
type PostFunc func(bodyID, generation uint64)

// RecordFunc observes collisions between two named bodies.
type RecordFunc func(a, b *physics.Body)

type pendingClear struct {
	generation uint64
	timer      Timer
}

// Notifier reacts to collision-start events.
//
// Every method except the PostFunc it was given runs on the engine loop.
type Notifier struct {
	world  *world.Registry
	post   PostFunc
	sched  Scheduler
	delay  time.Duration
	logger *slog.Logger
	record RecordFunc

	generation uint64
	pending    map[uint64]pendingClear
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithScheduler replaces the system scheduler, e.g. with a manual one in
// tests.
func WithScheduler(s Scheduler) Option {
	return func(n *Notifier) {
		n.sched = s
	}
}

// WithDelay sets how long the colliding flag stays up.
func WithDelay(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.delay = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithRecorder observes every collision between two named bodies.
func WithRecorder(f RecordFunc) Option {
	return func(n *Notifier) {
		n.record = f
	}
}

// New creates a notifier and subscribes it to w's collision and removal
// events.
func New(w *world.Registry, post PostFunc, opts ...Option) *Notifier {
	n := &Notifier{
		world:   w,
		post:    post,
		sched:   SystemScheduler{},
		delay:   DefaultClearDelay,
		logger:  slog.Default(),
		pending: make(map[uint64]pendingClear),
	}
	for _, opt := range opts {
		opt(n)
	}
	w.OnCollisionStart(n.Handle)
	w.OnBodyRemoved(n.Forget)
	return n
}

// Handle processes the pairs that started touching in one step.
func (n *Notifier) Handle(pairs []physics.Pair) {
	for _, p := range pairs {
		n.mark(p.A)
		n.mark(p.B)

		if p.A.Name != "" && p.B.Name != "" {
			n.logger.Info("bodies collided", "a", p.A.Name, "b", p.B.Name)
			if n.record != nil {
				n.record(p.A, p.B)
			}
		}
	}
}

func (n *Notifier) mark(b *physics.Body) {
	b.Colliding = true

	if prev, ok := n.pending[b.ID]; ok {
		prev.timer.Stop()
	}
	n.generation++
	id, gen := b.ID, n.generation
	n.pending[id] = pendingClear{
		generation: gen,
		timer:      n.sched.AfterFunc(n.delay, func() { n.post(id, gen) }),
	}
}

// Clear lowers the flag of a body whose clear has come due. A stale
// generation or a body that has left the world is ignored. It reports
// whether a flag was cleared.
func (n *Notifier) Clear(bodyID, generation uint64) bool {
	p, ok := n.pending[bodyID]
	if !ok || p.generation != generation {
		return false
	}
	delete(n.pending, bodyID)

	b := n.world.FindBody(bodyID)
	if b == nil {
		return false
	}
	b.Colliding = false
	return true
}

// Forget cancels the pending clear of a body that left the world.
func (n *Notifier) Forget(b *physics.Body) {
	p, ok := n.pending[b.ID]
	if !ok {
		return
	}
	p.timer.Stop()
	delete(n.pending, b.ID)
}

// Pending returns how many clears are armed.
func (n *Notifier) Pending() int {
	return len(n.pending)
}
