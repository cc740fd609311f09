package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/scene"
	"github.com/roach88/tether/internal/store"
)

// Scenario is a scripted session run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene is "default" for the built-in scene, a scene file path, or
	// empty for an empty world. Paths are relative to the scenario file.
	Scene string `yaml:"scene,omitempty"`

	// Gravity overrides the scene's gravity when set.
	Gravity *physics.Vec `yaml:"gravity,omitempty"`

	// Bodies are added after the scene.
	Bodies []scene.Body `yaml:"bodies,omitempty"`

	// Flow is played in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// SceneDefault selects the built-in scene.
const SceneDefault = "default"

// Step actions. The session actions carry the same names as the wire
// messages.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionCursorMove = "cursorMove"
	ActionPick       = "pick"
	ActionRelease    = "release"
	ActionSpawnAt    = "spawnAt"
	ActionTick       = "tick"
	ActionAdvance    = "advance"
)

var validActions = map[string]bool{
	ActionConnect:    true,
	ActionDisconnect: true,
	ActionCursorMove: true,
	ActionPick:       true,
	ActionRelease:    true,
	ActionSpawnAt:    true,
	ActionTick:       true,
	ActionAdvance:    true,
}

// FlowStep is one event or clock step.
type FlowStep struct {
	Action      string      `yaml:"action"`
	Connection  string      `yaml:"connection,omitempty"`
	Participant string      `yaml:"participant,omitempty"`
	At          physics.Vec `yaml:"at,omitempty"`
	Bind        bool        `yaml:"bind,omitempty"`

	// Count is the number of ticks for a tick step. Default 1.
	Count int `yaml:"count,omitempty"`

	// Duration is the scheduler advance for an advance step.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Expect checks the step outcome. Without it any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Outcome is "ok", "auth_error", "error" or an engine error code such
	// as "UNKNOWN_SESSION".
	Outcome string `yaml:"outcome"`
}

// Assertion checks the state after the flow.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number (counts, trace_count, journal).
	Count int `yaml:"count,omitempty"`

	// Body names a body (colliding, candidate). For candidate an empty
	// body means no candidate.
	Body string `yaml:"body,omitempty"`

	// Connection names a session (candidate).
	Connection string `yaml:"connection,omitempty"`

	// Colliding is the expected flag (colliding).
	Colliding bool `yaml:"colliding,omitempty"`

	// Action names a step action (trace_count).
	Action string `yaml:"action,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Kind is a journal entry kind (journal).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertBodyCount       = "body_count"
	AssertConstraintCount = "constraint_count"
	AssertSessionCount    = "session_count"
	AssertPickCount       = "pick_count"
	AssertColliding       = "colliding"
	AssertCandidate       = "candidate"
	AssertTraceCount      = "trace_count"
	AssertTraceOrder      = "trace_order"
	AssertJournal         = "journal"
)

var validAssertions = map[string]bool{
	AssertBodyCount:       true,
	AssertConstraintCount: true,
	AssertSessionCount:    true,
	AssertPickCount:       true,
	AssertColliding:       true,
	AssertCandidate:       true,
	AssertTraceCount:      true,
	AssertTraceOrder:      true,
	AssertJournal:         true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative scene path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Scene != "" && s.Scene != SceneDefault && !filepath.IsAbs(s.Scene) {
		s.Scene = filepath.Join(filepath.Dir(path), s.Scene)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		if a.Type == AssertJournal {
			if _, err := store.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertion %d: %w", i, err)
			}
		}
	}

	return nil
}

func validateStep(step FlowStep) error {
	if !validActions[step.Action] {
		return fmt.Errorf("unknown action %q", step.Action)
	}
	switch step.Action {
	case ActionConnect, ActionDisconnect, ActionCursorMove, ActionPick, ActionRelease:
		if step.Connection == "" {
			return fmt.Errorf("%s needs a connection", step.Action)
		}
	case ActionTick:
		if step.Count < 0 {
			return fmt.Errorf("tick count must not be negative")
		}
	case ActionAdvance:
		if step.Duration <= 0 {
			return fmt.Errorf("advance needs a positive duration")
		}
	}
	return nil
}
