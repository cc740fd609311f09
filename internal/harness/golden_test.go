package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collision_clear.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, s.Name, result))
}

func TestMarshalTrace_Format(t *testing.T) {
	data, err := MarshalTrace("tiny", []TraceEvent{
		{Seq: 1, Action: ActionTick, Outcome: OutcomeOK, Bodies: 2},
	})
	require.NoError(t, err)

	want := `{
  "scenario_name": "tiny",
  "trace": [
    {
      "seq": 1,
      "action": "tick",
      "outcome": "ok",
      "bodies": 2,
      "constraints": 0,
      "sessions": 0
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalTrace_RoundTrip(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Action: ActionConnect, Connection: "c1", Outcome: OutcomeOK, Bodies: 2, Constraints: 1, Sessions: 1},
		{Seq: 2, Action: ActionCursorMove, Connection: "c2", Outcome: "UNKNOWN_SESSION", Bodies: 2, Constraints: 1, Sessions: 1},
	}

	data, err := MarshalTrace("round_trip", trace)
	require.NoError(t, err)

	var snap TraceSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "round_trip", snap.ScenarioName)
	assert.Equal(t, trace, snap.Trace)
}
