package harness

// TraceEvent records one flow step and the world it left behind.
type TraceEvent struct {
	Seq         int    `json:"seq"`
	Action      string `json:"action"`
	Connection  string `json:"connection,omitempty"`
	Outcome     string `json:"outcome"`
	Bodies      int    `json:"bodies"`
	Constraints int    `json:"constraints"`
	Sessions    int    `json:"sessions"`
}

// Outcome values other than error codes.
const (
	OutcomeOK        = "ok"
	OutcomeAuthError = "auth_error"
	OutcomeError     = "error"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
