package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/index"
	"github.com/roach88/datoms/internal/kernel"
	"github.com/roach88/datoms/internal/testutil"
)

// Harness is the scenario execution engine. It runs one scenario on one
// fresh kernel.
type Harness struct {
	kernel *kernel.Kernel
	schema *compiler.Schema
	clock  *testutil.TxClock
	logger *slog.Logger

	labels map[string]datom.EID
	names  map[datom.EID]string
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger makes the harness and its kernel log to l. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh kernel with a deterministic clock and
// editor token.
//
// Execution flow:
//  1. Compile the schema and install it in its own transaction
//  2. Execute each scenario transaction, recording its novelty or error
//  3. Evaluate assertions against the final database
//
// The returned error reports a broken scenario (unknown label, type or
// attribute). Failed expectations are recorded in the Result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h, result, err := Execute(scenario, opts...)
	if err != nil {
		return nil, err
	}
	h.Close()
	return result, nil
}

// Execute runs a scenario like Run but keeps the harness open so the final
// database can be inspected. The caller closes the harness.
func Execute(scenario *Scenario, opts ...Option) (*Harness, *Result, error) {
	h, err := New(scenario, opts...)
	if err != nil {
		return nil, nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, txn := range scenario.Transactions {
		if err := h.executeTransaction(ctx, i, txn, result); err != nil {
			h.Close()
			return nil, nil, err
		}
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}
	return h, result, nil
}

// New prepares a harness for scenario: it compiles the schema, starts a
// kernel and installs the schema.
func New(scenario *Scenario, opts ...Option) (*Harness, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	schema, err := loadSchema(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	clock := testutil.NewTxClock()
	k, err := kernel.New(
		kernel.WithClock(clock),
		kernel.WithEditors(testutil.NewFixedEditor(scenario.Editor)),
		kernel.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start kernel: %w", err)
	}

	h := &Harness{
		kernel: k,
		schema: schema,
		clock:  clock,
		logger: o.logger,
		labels: make(map[string]datom.EID),
		names:  make(map[datom.EID]string),
	}
	for _, t := range schema.Types {
		h.names[t.E] = t.Ident
	}

	if _, err := k.Transact(context.Background(), schema.Install); err != nil {
		k.Close()
		return nil, fmt.Errorf("failed to install schema: %w", err)
	}
	return h, nil
}

func loadSchema(s *Scenario) (*compiler.Schema, error) {
	if s.SchemaFile != "" {
		return compiler.LoadFile(s.SchemaFile)
	}
	return compiler.Build(*s.Schema)
}

// Kernel returns the harness kernel.
func (h *Harness) Kernel() *kernel.Kernel { return h.kernel }

// DB returns the current database.
func (h *Harness) DB() *db.DB { return h.kernel.DB() }

// Schema returns the compiled scenario schema.
func (h *Harness) Schema() *compiler.Schema { return h.schema }

// Entity returns the entity bound to label.
func (h *Harness) Entity(label string) (datom.EID, bool) {
	e, ok := h.labels[label]
	return e, ok
}

// Datoms returns every datom of every entity of a scenario type, in
// entity order.
func (h *Harness) Datoms() []datom.Datom {
	q := h.DB()
	var out []datom.Datom
	for _, t := range h.schema.Types {
		for _, e := range db.Entities(q, t.E) {
			out = append(out, q.QueryIndex(index.Entity{E: e})...)
		}
	}
	return out
}

// Close releases the kernel.
func (h *Harness) Close() { h.kernel.Close() }

// executeTransaction runs one scenario transaction and appends its trace
// event. Labels bound by a failed transaction are discarded.
func (h *Harness) executeTransaction(ctx context.Context, i int, txn Transaction, result *Result) error {
	st := &txnState{h: h, staged: make(map[string]datom.EID)}

	change, err := h.kernel.Transact(ctx, func(s *changescope.ChangeScope) error {
		for j, step := range txn.Steps {
			if err := st.execute(s, step); err != nil {
				return fmt.Errorf("step %d (%s): %w", j, step.Kind(), err)
			}
		}
		return nil
	})

	event := TraceEvent{TX: h.clock.Current(), Name: txn.Name}
	label := fmt.Sprintf("transaction %d", i)
	if txn.Name != "" {
		label = fmt.Sprintf("transaction %d (%s)", i, txn.Name)
	}

	if err != nil {
		var se *ScenarioError
		if errors.As(err, &se) {
			return fmt.Errorf("%s: %w", label, err)
		}

		code := string(datom.CodeOf(err))
		if code == "" {
			code = "ERROR"
		}
		event.Error = code
		result.Trace = append(result.Trace, event)

		switch {
		case txn.ExpectError == "":
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
		case txn.ExpectError != code:
			result.AddError(fmt.Sprintf("%s: expected %s, got %s: %v", label, txn.ExpectError, code, err))
		}
		h.logger.Info("transaction failed", "tx", event.TX, "name", txn.Name, "code", code)
		return nil
	}

	if txn.ExpectError != "" {
		result.AddError(fmt.Sprintf("%s: expected %s, but it committed", label, txn.ExpectError))
	}
	for name, e := range st.staged {
		h.labels[name] = e
		h.names[e] = name
	}

	event.Datoms = h.render(change.Novelty, datom.NewTX(event.TX))
	result.Trace = append(result.Trace, event)

	h.logger.Info("transaction committed",
		"tx", event.TX,
		"name", txn.Name,
		"datoms", len(event.Datoms),
	)
	return nil
}

// Render converts datoms to trace datoms with their transactions, sorted
// the way traces are.
func (h *Harness) Render(ds []datom.Datom) []TraceDatom {
	return h.render(ds, 0)
}

// render converts datoms to trace datoms, sorted by entity, attribute,
// retractions first, then value, so traces do not depend on index layout.
// The transaction is kept only where it differs from tx.
func (h *Harness) render(n []datom.Datom, tx datom.TX) []TraceDatom {
	out := make([]TraceDatom, 0, len(n))
	for _, d := range n {
		td := TraceDatom{
			Added: d.Added,
			E:     h.entityName(d.E),
			A:     h.attributeName(d.A),
			V:     h.formatValue(d.V),
		}
		if d.TX != tx {
			td.TX = d.TX.Seq()
		}
		out = append(out, td)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.E != b.E {
			return a.E < b.E
		}
		if a.A != b.A {
			return a.A < b.A
		}
		if a.Added != b.Added {
			return !a.Added
		}
		return a.V < b.V
	})
	return out
}

func (h *Harness) entityName(e datom.EID) string {
	if name, ok := h.names[e]; ok {
		return "@" + name
	}
	return "@" + e.String()
}

func (h *Harness) attributeName(a datom.Attribute) string {
	if ident, ok := h.schema.Ident(a.EID()); ok {
		return ident
	}
	for _, b := range datom.BuiltinAttributes {
		if b.Attr == a {
			return b.Ident
		}
	}
	return a.String()
}

// formatValue renders v as JSON, with references as entity names.
func (h *Harness) formatValue(v datom.Value) string {
	switch val := v.(type) {
	case datom.Ref:
		return h.entityName(val.EID())
	case datom.Array:
		s := "["
		for i, elem := range val {
			if i > 0 {
				s += ","
			}
			s += h.formatValue(elem)
		}
		return s + "]"
	default:
		return datom.FormatValue(v)
	}
}
