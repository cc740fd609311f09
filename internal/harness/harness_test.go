package harness

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/collision"
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/scene"
)

func crate(name string, x, y float64) scene.Body {
	return scene.Body{Shape: "rectangle", X: x, Y: y, Width: 40, Height: 40, Material: "heavy", Name: name}
}

func TestRun_ConnectAndLeave(t *testing.T) {
	s := &Scenario{
		Name:        "connect_and_leave",
		Description: "A session joins and leaves",
		Flow: []FlowStep{
			{Action: ActionConnect, Connection: "c1", Participant: "alice"},
			{Action: ActionDisconnect, Connection: "c1"},
		},
		Assertions: []Assertion{
			{Type: AssertBodyCount, Count: 0},
			{Type: AssertJournal, Kind: "connect", Count: 1},
			{Type: AssertJournal, Kind: "disconnect", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Seq: 1, Action: ActionConnect, Connection: "c1", Outcome: OutcomeOK, Bodies: 2, Constraints: 1, Sessions: 1}, result.Trace[0])
	assert.Equal(t, TraceEvent{Seq: 2, Action: ActionDisconnect, Connection: "c1", Outcome: OutcomeOK}, result.Trace[1])
}

func TestRun_Outcomes(t *testing.T) {
	s := &Scenario{
		Name:        "outcomes",
		Description: "Refused and unknown sessions",
		Flow: []FlowStep{
			{Action: ActionConnect, Connection: "c1", Participant: "   "},
			{Action: ActionPick, Connection: "c1", At: physics.Vec{X: 1, Y: 1}},
			{Action: ActionConnect, Connection: "c2", Participant: "bob"},
			{Action: ActionConnect, Connection: "c2", Participant: "bob"},
		},
		Assertions: []Assertion{
			{Type: AssertSessionCount, Count: 1},
			{Type: AssertJournal, Kind: "rejected", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	outcomes := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		outcomes[i] = ev.Outcome
	}
	assert.Equal(t, []string{OutcomeAuthError, "UNKNOWN_SESSION", OutcomeOK, OutcomeError}, outcomes)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := &Scenario{
		Name:        "expect_mismatch",
		Description: "An expect clause that does not hold",
		Flow: []FlowStep{
			{Action: ActionRelease, Connection: "c1", Expect: &ExpectClause{Outcome: OutcomeOK}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected outcome "ok", got "UNKNOWN_SESSION"`)
}

func TestRun_AssertionFailureFails(t *testing.T) {
	s := &Scenario{
		Name:        "assertion_failure",
		Description: "A count that does not hold",
		Flow:        []FlowStep{{Action: ActionTick}},
		Assertions:  []Assertion{{Type: AssertBodyCount, Count: 7}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "body_count")
}

func TestRun_PickThenDisconnectRemovesPick(t *testing.T) {
	s := &Scenario{
		Name:        "pick_then_leave",
		Description: "A pick goes away with its session",
		Bodies:      []scene.Body{crate("Crate", 100, 100)},
		Flow: []FlowStep{
			{Action: ActionConnect, Connection: "c1", Participant: "alice"},
			{Action: ActionPick, Connection: "c1", At: physics.Vec{X: 100, Y: 100}},
			{Action: ActionDisconnect, Connection: "c1"},
		},
		Assertions: []Assertion{
			{Type: AssertPickCount, Count: 0},
			{Type: AssertConstraintCount, Count: 0},
			{Type: AssertBodyCount, Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 2, result.Trace[1].Constraints)
}

func TestRun_CollisionFlagHeldUntilDelay(t *testing.T) {
	s := &Scenario{
		Name:        "collision_held",
		Description: "Flag stays up until the clear delay has passed",
		Bodies:      []scene.Body{crate("A", 0, 0), crate("B", 30, 0)},
		Flow: []FlowStep{
			{Action: ActionTick},
			{Action: ActionAdvance, Duration: collision.DefaultClearDelay - time.Millisecond},
		},
		Assertions: []Assertion{
			{Type: AssertColliding, Body: "A", Colliding: true},
			{Type: AssertColliding, Body: "B", Colliding: true},
			{Type: AssertJournal, Kind: "collision", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_SpawnWithGravity(t *testing.T) {
	gravity := physics.Vec{Y: 500}
	s := &Scenario{
		Name:        "spawn",
		Description: "Spawned crates join the world",
		Gravity:     &gravity,
		Flow: []FlowStep{
			{Action: ActionSpawnAt, At: physics.Vec{X: 100, Y: 100}},
			{Action: ActionSpawnAt, Connection: "c1", At: physics.Vec{X: 200, Y: 100}},
			{Action: ActionTick, Count: 5},
		},
		Assertions: []Assertion{
			{Type: AssertBodyCount, Count: 2},
			{Type: AssertJournal, Kind: "spawn", Count: 2},
			{Type: AssertTraceCount, Action: ActionTick, Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_DefaultScene(t *testing.T) {
	s := &Scenario{
		Name:        "default_scene",
		Description: "The built-in scene loads",
		Scene:       SceneDefault,
		Flow: []FlowStep{
			{Action: ActionConnect, Connection: "c1", Participant: "alice"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	// 11 scene bodies, the car's 3 parts and the avatar.
	assert.Equal(t, 16, result.Trace[0].Bodies)
	assert.Equal(t, 1, result.Trace[0].Constraints)
}

func TestRun_MissingSceneFile(t *testing.T) {
	s := &Scenario{
		Name:        "missing_scene",
		Description: "Scene file does not exist",
		Scene:       "testdata/no_such_scene.yaml",
		Flow:        []FlowStep{{Action: ActionTick}},
	}

	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_Deterministic(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		first, err := Run(s)
		require.NoError(t, err)
		second, err := Run(s)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, second.Trace, s.Name)
	}
}

func TestRun_FreshJournalPerRun(t *testing.T) {
	s := &Scenario{
		Name:        "fresh",
		Description: "Each run starts with an empty journal",
		Flow:        []FlowStep{{Action: ActionConnect, Connection: "c1", Participant: "alice"}},
		Assertions:  []Assertion{{Type: AssertJournal, Kind: "connect", Count: 1}},
	}

	for range 2 {
		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestRunWithLogger_LogsSteps(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := &Scenario{
		Name:        "logged",
		Description: "Steps are logged",
		Flow:        []FlowStep{{Action: ActionTick}},
	}

	_, err := RunWithLogger(s, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "flow step completed")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")

	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
