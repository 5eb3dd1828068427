package harness

// TraceDatom is one datom of a transaction's novelty, with entities and
// attributes rendered by name.
type TraceDatom struct {
	Added bool   `json:"added"`
	E     string `json:"e"`
	A     string `json:"a"`
	V     string `json:"v"`
	// TX is set only when the datom keeps a transaction other than the one
	// that wrote it (migrated values).
	TX int64 `json:"tx,omitempty"`
}

// TraceEvent records one transaction.
type TraceEvent struct {
	TX     int64        `json:"tx"`
	Name   string       `json:"name,omitempty"`
	Error  string       `json:"error,omitempty"`
	Datoms []TraceDatom `json:"datoms,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every transaction behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per scenario transaction, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
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
