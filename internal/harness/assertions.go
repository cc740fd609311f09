package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/world"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Action, event.Connection, event.Outcome)
		}
	}

	return buf.String()
}

// AssertionContext is what assertions can inspect after the flow.
type AssertionContext struct {
	Ctx      context.Context
	World    *world.Registry
	Sessions *session.Manager
	Store    *store.Store
}

func assertCount(kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// assertColliding checks a named body's collision flag.
func assertColliding(w *world.Registry, a Assertion) error {
	b := bodyByName(w, a.Body)
	if b == nil {
		return &AssertionError{
			Type:     AssertColliding,
			Expected: fmt.Sprintf("body named %q", a.Body),
			Actual:   "no such body",
		}
	}
	if b.Colliding != a.Colliding {
		return &AssertionError{
			Type:     AssertColliding,
			Expected: fmt.Sprintf("%s colliding=%t", a.Body, a.Colliding),
			Actual:   fmt.Sprintf("colliding=%t", b.Colliding),
		}
	}
	return nil
}

// assertCandidate checks which body a session's bind gesture holds.
func assertCandidate(m *session.Manager, a Assertion) error {
	s := m.Get(a.Connection)
	if s == nil {
		return &AssertionError{
			Type:     AssertCandidate,
			Expected: fmt.Sprintf("session %q", a.Connection),
			Actual:   "no such session",
		}
	}
	got := ""
	if s.BindCandidate != nil {
		got = s.BindCandidate.Name
		if got == "" {
			got = s.BindCandidate.String()
		}
	}
	if got != a.Body {
		return &AssertionError{
			Type:     AssertCandidate,
			Expected: fmt.Sprintf("candidate %q", a.Body),
			Actual:   fmt.Sprintf("candidate %q", got),
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == a.Action {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Actions) && event.Action == a.Actions[next] {
			next++
		}
	}
	if next == len(a.Actions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", a.Actions),
		Actual:   fmt.Sprintf("matched up to %v", a.Actions[:next]),
		Trace:    trace,
	}
}

// assertJournal checks how many entries of a kind were written.
func assertJournal(ctx context.Context, st *store.Store, a Assertion) error {
	counts, err := st.Counts(ctx)
	if err != nil {
		return fmt.Errorf("journal assertion: %w", err)
	}
	got := counts[store.Kind(a.Kind)]
	if got != a.Count {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("%d %s entries", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertBodyCount:
			bodies, _ := actx.World.Counts()
			err = assertCount(a.Type, a.Count, bodies)
		case AssertConstraintCount:
			_, constraints := actx.World.Counts()
			err = assertCount(a.Type, a.Count, constraints)
		case AssertSessionCount:
			err = assertCount(a.Type, a.Count, actx.Sessions.Len())
		case AssertPickCount:
			err = assertCount(a.Type, a.Count, pickCount(actx.World))
		case AssertColliding:
			err = assertColliding(actx.World, a)
		case AssertCandidate:
			err = assertCandidate(actx.Sessions, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertJournal:
			if actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a store", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
