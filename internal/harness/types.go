package harness

// TraceEvent records what one step did.
type TraceEvent struct {
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Applied []string `json:"applied,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
	Aborted bool     `json:"aborted,omitempty"`
	Changed bool     `json:"changed,omitempty"`
	Ran     int      `json:"ran,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Orders maps "<parent> <variety name>" to the final persisted keys of
	// every sort order of the scenario's loadouts.
	Orders map[string][]string `json:"orders"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Orders: make(map[string][]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
