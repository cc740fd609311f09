package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/tether/internal/collision"
	"github.com/roach88/tether/internal/interact"
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/snapshot"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/world"
)

// Tick defaults.
const (
	// DefaultTickInterval is the broadcast period.
	DefaultTickInterval = time.Second / 30
	// DefaultStep is the simulated time advanced per tick.
	DefaultStep = time.Second / 30
)

const tracerName = "github.com/roach88/tether/internal/engine"

// Broadcaster delivers a tick's snapshot to the given connections.
//
// Broadcast is called from the Run loop and must not block on slow
// clients.
type Broadcaster interface {
	Broadcast(snap snapshot.Snapshot, recipients []string)
}

// Journal records notable events. Record must not block.
type Journal interface {
	Record(e store.Entry) bool
}

// Stats is a point-in-time summary readable from any goroutine.
type Stats struct {
	Tick        int64 `json:"tick"`
	Sessions    int64 `json:"sessions"`
	Bodies      int64 `json:"bodies"`
	Constraints int64 `json:"constraints"`
	Queued      int   `json:"queued"`
}

// Engine is the single writer of the shared world.
//
// Every world mutation (connect, disconnect, gestures, spawns, collision
// clears) and every tick happens on the goroutine running Run, one at a
// time. Other goroutines submit work through the event queue.
//
// Thread-safety model:
//   - Connect, Disconnect, MoveCursor, Pick, Release, Spawn, Stats: safe
//     from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Apply, Tick, World, Sessions: only when Run is not running (tests,
//     scenario harness)
type Engine struct {
	world    *world.Registry
	sessions *session.Manager
	ctl      *interact.Controller
	notifier *collision.Notifier

	queue *eventQueue
	clock *Clock
	done  chan struct{}

	broadcaster Broadcaster
	journal     Journal
	tracer      trace.Tracer
	logger      *slog.Logger

	tickInterval time.Duration
	step         time.Duration

	scheduler  collision.Scheduler
	clearDelay time.Duration
	ctlOpts    []interact.Option

	sessionCount    atomic.Int64
	bodyCount       atomic.Int64
	constraintCount atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithBroadcaster sets where snapshots go. Default: nowhere.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) {
		e.broadcaster = b
	}
}

// WithJournal sets the event journal. Default: none.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithTracer sets the tracer used for tick spans.
// Default: the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTickInterval sets the broadcast period.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithStep sets the simulated time per tick.
func WithStep(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.step = d
		}
	}
}

// WithScheduler sets the scheduler for collision clears.
func WithScheduler(s collision.Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithClearDelay sets how long a body stays flagged after a collision.
func WithClearDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.clearDelay = d
	}
}

// WithControllerOptions passes options through to the interaction
// controller.
func WithControllerOptions(opts ...interact.Option) Option {
	return func(e *Engine) {
		e.ctlOpts = append(e.ctlOpts, opts...)
	}
}

// New creates an engine that owns w. The world should already hold its
// scene.
func New(w *world.Registry, opts ...Option) *Engine {
	e := &Engine{
		world:        w,
		queue:        newEventQueue(),
		clock:        NewClock(),
		done:         make(chan struct{}),
		tracer:       otel.Tracer(tracerName),
		logger:       slog.Default(),
		tickInterval: DefaultTickInterval,
		step:         DefaultStep,
		scheduler:    collision.SystemScheduler{},
		clearDelay:   collision.DefaultClearDelay,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.sessions = session.NewManager(w, session.WithLogger(e.logger))
	e.ctl = interact.New(w, append([]interact.Option{interact.WithLogger(e.logger)}, e.ctlOpts...)...)
	e.notifier = collision.New(w, e.postClear,
		collision.WithScheduler(e.scheduler),
		collision.WithDelay(e.clearDelay),
		collision.WithLogger(e.logger),
		collision.WithRecorder(e.recordCollision),
	)
	e.refreshStats()
	return e
}

// SetBroadcaster replaces the broadcaster. The transport needs the engine
// to exist before it can be built, so it is attached here rather than
// through WithBroadcaster. Must be called before Run.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// Connect creates a session and waits until the Run loop has done so.
// A missing participant id fails with a *session.AuthError.
//
// If ctx ends first, a disconnect is queued behind the connect so that a
// session nobody is waiting for does not linger.
func (e *Engine) Connect(ctx context.Context, connectionID, participantID string) error {
	reply := make(chan error, 1)
	ok := e.queue.Enqueue(Event{
		Type:          EventConnect,
		ConnectionID:  connectionID,
		ParticipantID: participantID,
		reply:         reply,
	})
	if !ok {
		return NewStoppedError()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		e.Disconnect(connectionID)
		return ctx.Err()
	case <-e.done:
		select {
		case err := <-reply:
			return err
		default:
			return NewStoppedError()
		}
	}
}

// Disconnect queues the end of a session.
func (e *Engine) Disconnect(connectionID string) bool {
	return e.Enqueue(Event{Type: EventDisconnect, ConnectionID: connectionID})
}

// MoveCursor queues a cursor move.
func (e *Engine) MoveCursor(connectionID string, p physics.Vec) bool {
	return e.Enqueue(Event{Type: EventCursorMove, ConnectionID: connectionID, Point: p})
}

// Pick queues a click; isBind selects the bind gesture.
func (e *Engine) Pick(connectionID string, p physics.Vec, isBind bool) bool {
	return e.Enqueue(Event{Type: EventPick, ConnectionID: connectionID, Point: p, IsBind: isBind})
}

// Release queues a release.
func (e *Engine) Release(connectionID string) bool {
	return e.Enqueue(Event{Type: EventRelease, ConnectionID: connectionID})
}

// Spawn queues a crate drop.
func (e *Engine) Spawn(connectionID string, p physics.Vec) bool {
	return e.Enqueue(Event{Type: EventSpawn, ConnectionID: connectionID, Point: p})
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// postClear runs on a timer goroutine.
func (e *Engine) postClear(bodyID, generation uint64) {
	e.queue.Enqueue(Event{Type: EventClearCollision, BodyID: bodyID, Generation: generation})
}

// Run starts the single-writer loop and the tick timer.
// Blocks until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine, at most once.
//
// The tick timer is re-armed only after a tick finishes, so a slow tick
// delays the next one rather than causing a skipped or doubled tick. A
// due tick is taken before the next queued event, so a burst of input
// cannot starve the broadcast.
//
// ERROR HANDLING: a failing or panicking event is logged and the loop
// continues with the next event.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	e.logger.Info("engine starting",
		"tick_interval", e.tickInterval,
		"step", e.step,
	)

	timer := time.NewTimer(e.tickInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			e.safeTick(ctx)
			timer.Reset(e.tickInterval)
			continue
		default:
		}

		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-timer.C:
			e.safeTick(ctx)
			timer.Reset(e.tickInterval)

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed, which
			// makes this case fire immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine. Queued events are still applied;
// Run returns once the queue is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// drain refuses whatever is still queued after cancellation.
func (e *Engine) drain() {
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		if ev.reply != nil {
			ev.reply <- NewStoppedError()
		}
	}
}

// process applies one event, recovering from panics, and answers the
// event's reply channel if it has one.
func (e *Engine) process(ctx context.Context, ev Event) {
	err := e.safeApply(ctx, ev)
	if err != nil {
		e.logEventError(ev, err)
	}
	if ev.reply != nil {
		ev.reply <- err
	}
}

func (e *Engine) safeApply(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(ev.Type, ev.ConnectionID, r)
		}
	}()
	return e.Apply(ctx, ev)
}

// Apply applies one event to the world on the caller's goroutine.
// Must not be called while Run is running.
func (e *Engine) Apply(ctx context.Context, ev Event) error {
	defer e.refreshStats()

	if ev.Type.carriesPoint() && !ev.Point.Finite() {
		return NewInvalidPointError(ev.Type, ev.ConnectionID, ev.Point)
	}

	switch ev.Type {
	case EventConnect:
		return e.connect(ev)

	case EventDisconnect:
		s := e.sessions.Get(ev.ConnectionID)
		if s == nil {
			return NewUnknownSessionError(ev.Type, ev.ConnectionID)
		}
		e.sessions.Disconnect(s)
		e.record(store.Entry{
			Kind:         store.KindDisconnect,
			ConnectionID: s.ID,
			Participant:  s.ParticipantID,
			Subject:      s.Label,
		})
		return nil

	case EventCursorMove:
		s := e.sessions.Get(ev.ConnectionID)
		if s == nil {
			return NewUnknownSessionError(ev.Type, ev.ConnectionID)
		}
		e.ctl.MoveCursor(s, ev.Point)
		return nil

	case EventPick:
		s := e.sessions.Get(ev.ConnectionID)
		if s == nil {
			return NewUnknownSessionError(ev.Type, ev.ConnectionID)
		}
		e.ctl.Bind(s, ev.Point, ev.IsBind)
		return nil

	case EventRelease:
		s := e.sessions.Get(ev.ConnectionID)
		if s == nil {
			return NewUnknownSessionError(ev.Type, ev.ConnectionID)
		}
		e.ctl.Release(s)
		return nil

	case EventSpawn:
		b := e.ctl.Spawn(ev.Point)
		e.record(store.Entry{
			Kind:         store.KindSpawn,
			ConnectionID: ev.ConnectionID,
			Subject:      b.String(),
			Data:         map[string]any{"x": ev.Point.X, "y": ev.Point.Y},
		})
		return nil

	case EventClearCollision:
		e.notifier.Clear(ev.BodyID, ev.Generation)
		return nil

	default:
		return &RuntimeError{
			Code:         ErrCodeInvalidEvent,
			Message:      "unknown event type",
			ConnectionID: ev.ConnectionID,
			Event:        ev.Type.String(),
		}
	}
}

// ApplyQueued applies every queued event on the caller's goroutine, the
// way Run would, and returns how many it applied. Collision clears posted
// by a manual scheduler arrive this way. Must not be called while Run is
// running.
func (e *Engine) ApplyQueued(ctx context.Context) int {
	n := 0
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.process(ctx, ev)
		n++
	}
}

func (e *Engine) connect(ev Event) error {
	s, err := e.sessions.Connect(ev.ConnectionID, ev.ParticipantID)
	if err != nil {
		if session.IsAuthError(err) {
			e.record(store.Entry{
				Kind:         store.KindRejected,
				ConnectionID: ev.ConnectionID,
				Data:         map[string]any{"reason": err.Error()},
			})
		}
		return err
	}
	e.record(store.Entry{
		Kind:         store.KindConnect,
		ConnectionID: s.ID,
		Participant:  s.ParticipantID,
		Subject:      s.Label,
	})
	return nil
}

func (e *Engine) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked", "tick", e.clock.Current(), "panic", fmt.Sprint(r))
		}
	}()
	e.Tick(ctx)
}

// Tick advances the world by one step, builds the snapshot and hands it
// to the broadcaster for every connected session. It returns the snapshot.
// Must not be called while Run is running.
func (e *Engine) Tick(ctx context.Context) snapshot.Snapshot {
	tick := e.clock.Next()
	_, span := e.tracer.Start(ctx, "tether.tick",
		trace.WithAttributes(attribute.Int64("tether.tick", tick)),
	)
	defer span.End()

	e.world.Step(e.step)
	snap := snapshot.Build(e.world)
	recipients := e.sessions.IDs()
	e.refreshStats()

	span.SetAttributes(
		attribute.Int("tether.bodies", len(snap.Bodies)),
		attribute.Int("tether.constraints", len(snap.Constraints)),
		attribute.Int("tether.sessions", len(recipients)),
	)

	if e.broadcaster != nil && len(recipients) > 0 {
		e.broadcaster.Broadcast(snap, recipients)
	}
	span.SetStatus(codes.Ok, "")
	return snap
}

// Snapshot builds the current snapshot without stepping.
// Must not be called while Run is running.
func (e *Engine) Snapshot() snapshot.Snapshot {
	return snapshot.Build(e.world)
}

// World returns the world. Must not be used while Run is running.
func (e *Engine) World() *world.Registry {
	return e.world
}

// Sessions returns the session manager. Must not be used while Run is
// running.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Notifier returns the collision notifier. Must not be used while Run is
// running.
func (e *Engine) Notifier() *collision.Notifier {
	return e.notifier
}

// Clock returns the tick clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of queued events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Stats returns counters updated after every event and tick.
// Thread-safe.
func (e *Engine) Stats() Stats {
	return Stats{
		Tick:        e.clock.Current(),
		Sessions:    e.sessionCount.Load(),
		Bodies:      e.bodyCount.Load(),
		Constraints: e.constraintCount.Load(),
		Queued:      e.queue.Len(),
	}
}

func (e *Engine) refreshStats() {
	bodies, constraints := e.world.Counts()
	e.sessionCount.Store(int64(e.sessions.Len()))
	e.bodyCount.Store(int64(bodies))
	e.constraintCount.Store(int64(constraints))
}

func (e *Engine) recordCollision(a, b *physics.Body) {
	e.record(store.Entry{
		Kind:    store.KindCollision,
		Subject: a.Name,
		Data:    map[string]any{"other": b.Name},
	})
}

func (e *Engine) record(entry store.Entry) {
	if e.journal == nil {
		return
	}
	entry.Tick = e.clock.Current()
	e.journal.Record(entry)
}

// logEventError logs a failed event with enough context to reproduce it.
func (e *Engine) logEventError(ev Event, err error) {
	level := slog.LevelError
	switch {
	case session.IsAuthError(err):
		level = slog.LevelInfo
	case IsUnknownSession(err), IsInvalidEvent(err):
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "event failed",
		"event", ev.Type.String(),
		"connection", ev.ConnectionID,
		"error", err,
	)
}
