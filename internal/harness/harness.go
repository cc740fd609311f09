package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tether/internal/engine"
	"github.com/roach88/tether/internal/interact"
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/physics/chipmunk"
	"github.com/roach88/tether/internal/scene"
	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/testutil"
	"github.com/roach88/tether/internal/world"
)

// Harness is one scenario execution: a fresh world, engine and journal.
type Harness struct {
	engine *engine.Engine
	world  *world.Registry
	store  *store.Store
	sched  *testutil.ManualScheduler
	bcast  *testutil.RecordingBroadcaster
	logger *slog.Logger
	seq    int
}

// syncJournal writes entries as they are recorded so assertions see them
// without waiting on a background writer.
type syncJournal struct {
	store  *store.Store
	logger *slog.Logger
}

func (j syncJournal) Record(e store.Entry) bool {
	if _, err := j.store.Append(context.Background(), e); err != nil {
		j.logger.Error("journal append failed", "kind", e.Kind, "error", err)
		return false
	}
	return true
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation. An error
// means the scenario could not be run at all; failed expectations and
// assertions are reported in the result.
func Run(s *Scenario) (*Result, error) {
	return RunWithLogger(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(s *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(s, st, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range s.Flow {
		h.execute(ctx, i, step, result)
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		World:    h.world,
		Sessions: h.engine.Sessions(),
		Store:    st,
	}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario, st *store.Store, logger *slog.Logger) (*Harness, error) {
	sc := &scene.Scene{Name: s.Name}
	switch s.Scene {
	case "":
	case SceneDefault:
		def, err := scene.Default()
		if err != nil {
			return nil, fmt.Errorf("default scene: %w", err)
		}
		sc = def
	default:
		loaded, err := scene.Load(s.Scene)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}
	sc.Bodies = append(append([]scene.Body(nil), sc.Bodies...), s.Bodies...)

	gravity := sc.Gravity
	if s.Gravity != nil {
		gravity = *s.Gravity
	}

	w := world.New(chipmunk.New(chipmunk.WithGravity(gravity)))
	if err := sc.Build(w); err != nil {
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}

	h := &Harness{
		world:  w,
		store:  st,
		sched:  testutil.NewManualScheduler(),
		bcast:  testutil.NewRecordingBroadcaster(),
		logger: logger,
	}
	h.engine = engine.New(w,
		engine.WithBroadcaster(h.bcast),
		engine.WithJournal(syncJournal{store: st, logger: logger}),
		engine.WithScheduler(h.sched),
		engine.WithLogger(logger),
	)
	return h, nil
}

// execute plays one step, records it in the trace and checks its expect
// clause.
func (h *Harness) execute(ctx context.Context, i int, step FlowStep, result *Result) {
	var err error
	switch step.Action {
	case ActionConnect:
		err = h.apply(ctx, engine.Event{Type: engine.EventConnect, ConnectionID: step.Connection, ParticipantID: step.Participant})
	case ActionDisconnect:
		err = h.apply(ctx, engine.Event{Type: engine.EventDisconnect, ConnectionID: step.Connection})
	case ActionCursorMove:
		err = h.apply(ctx, engine.Event{Type: engine.EventCursorMove, ConnectionID: step.Connection, Point: step.At})
	case ActionPick:
		err = h.apply(ctx, engine.Event{Type: engine.EventPick, ConnectionID: step.Connection, Point: step.At, IsBind: step.Bind})
	case ActionRelease:
		err = h.apply(ctx, engine.Event{Type: engine.EventRelease, ConnectionID: step.Connection})
	case ActionSpawnAt:
		err = h.apply(ctx, engine.Event{Type: engine.EventSpawn, ConnectionID: step.Connection, Point: step.At})
	case ActionTick:
		n := step.Count
		if n == 0 {
			n = 1
		}
		for range n {
			h.engine.Tick(ctx)
		}
	case ActionAdvance:
		h.sched.Advance(step.Duration)
		h.engine.ApplyQueued(ctx)
	}

	h.seq++
	bodies, constraints := h.world.Counts()
	ev := TraceEvent{
		Seq:         h.seq,
		Action:      step.Action,
		Connection:  step.Connection,
		Outcome:     outcome(err),
		Bodies:      bodies,
		Constraints: constraints,
		Sessions:    h.engine.Sessions().Len(),
	}
	result.Trace = append(result.Trace, ev)

	if step.Expect != nil && step.Expect.Outcome != ev.Outcome {
		result.AddError(fmt.Sprintf("flow step %d (%s): expected outcome %q, got %q", i, step.Action, step.Expect.Outcome, ev.Outcome))
	}

	h.logger.Debug("flow step completed",
		"step", i,
		"action", step.Action,
		"connection", step.Connection,
		"outcome", ev.Outcome,
	)
}

func (h *Harness) apply(ctx context.Context, ev engine.Event) error {
	err := h.engine.Apply(ctx, ev)
	// Anything the event queued (a disconnect behind a cancelled connect)
	// lands before the next step.
	h.engine.ApplyQueued(ctx)
	return err
}

// outcome classifies a step error for the trace.
func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if session.IsAuthError(err) {
		return OutcomeAuthError
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return OutcomeError
}

// pickCount counts live pick constraints.
func pickCount(w *world.Registry) int {
	n := 0
	for _, c := range w.AllConstraints() {
		if c.Name == interact.PickTag {
			n++
		}
	}
	return n
}

// bodyByName returns the first body, top-level or composite part, with
// the given name.
func bodyByName(w *world.Registry, name string) *physics.Body {
	for _, b := range append(w.AllBodies(), w.CompositeBodies()...) {
		if b.Name == name {
			return b
		}
	}
	return nil
}
