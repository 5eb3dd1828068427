package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertions[%d] (%s): expected %s, got %s", e.Index, e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks assertions against the harness's current
// database and returns a message per failure.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var failures []string
	q := h.DB()
	for i, a := range assertions {
		if err := evaluate(h, q, i, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(h *Harness, q db.Q, i int, a Assertion) error {
	st := &txnState{h: h}
	step := fmt.Sprintf("assertions[%d]", i)

	fail := func(expected, actual string) error {
		return &AssertionError{Index: i, Type: a.Type, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertValue:
		e, attr, err := st.entityAttribute(step, a)
		if err != nil {
			return err
		}
		want, err := st.value(step, attr, a.Expect, false)
		if err != nil {
			return err
		}
		got, _ := db.Value(q, e, attr)
		if !datom.Equal(want, got) {
			return fail(h.describe(want), h.describe(got))
		}

	case AssertValues:
		e, attr, err := st.entityAttribute(step, a)
		if err != nil {
			return err
		}
		expect := a.Expect
		if expect == nil {
			expect = []any{}
		}
		list, ok := expect.([]any)
		if !ok {
			return scenarioErrorf(step, "values expects a list")
		}
		want := make([]datom.Value, 0, len(list))
		for _, raw := range list {
			v, err := st.value(step, attr, raw, false)
			if err != nil {
				return err
			}
			want = append(want, v)
		}
		got := db.Values(q, e, attr)
		if w, g := h.describeAll(want), h.describeAll(got); w != g {
			return fail(w, g)
		}

	case AssertExists, AssertNotExists:
		e, err := st.entity(step, a.Entity)
		if err != nil {
			return err
		}
		want := a.Type == AssertExists
		if got := db.Exists(q, e); got != want {
			return fail(liveness(want), liveness(got))
		}

	case AssertCount:
		typ, err := st.entityType(step, a.EntityType)
		if err != nil {
			return err
		}
		if got := len(db.Entities(q, typ)); got != a.Count {
			return fail(fmt.Sprintf("%d %s", a.Count, a.EntityType), fmt.Sprintf("%d", got))
		}

	case AssertLookup:
		attr, err := st.attribute(step, a.Attribute)
		if err != nil {
			return err
		}
		v, err := st.value(step, attr, a.Value, false)
		if err != nil {
			return err
		}
		var want []string
		if a.Expect != nil {
			label, ok := a.Expect.(string)
			if !ok {
				return scenarioErrorf(step, "lookup expects an entity label")
			}
			e, err := st.entity(step, label)
			if err != nil {
				return err
			}
			want = append(want, h.entityName(e))
		}
		var got []string
		for _, e := range db.Lookup(q, attr, v) {
			got = append(got, h.entityName(e))
		}
		if w, g := strings.Join(want, ","), strings.Join(got, ","); w != g {
			return fail(orNone(w), orNone(g))
		}

	case AssertProblems:
		attr, err := st.attribute(step, a.Attribute)
		if err != nil {
			return err
		}
		if got := len(db.DeserializationProblems(q, attr)); got != a.Count {
			return fail(fmt.Sprintf("%d problems", a.Count), fmt.Sprintf("%d", got))
		}

	default:
		return scenarioErrorf(step, "unknown assertion type %q", a.Type)
	}
	return nil
}

func (st *txnState) entityAttribute(step string, a Assertion) (datom.EID, datom.Attribute, error) {
	e, err := st.entity(step, a.Entity)
	if err != nil {
		return 0, 0, err
	}
	attr, err := st.attribute(step, a.Attribute)
	if err != nil {
		return 0, 0, err
	}
	return e, attr, nil
}

func (h *Harness) describe(v datom.Value) string {
	if v == nil {
		return "no value"
	}
	return h.formatValue(v)
}

// describeAll renders values as a sorted list so that order does not
// matter.
func (h *Harness) describeAll(vs []datom.Value) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = h.formatValue(v)
	}
	sort.Strings(out)
	return "[" + strings.Join(out, " ") + "]"
}

func liveness(exists bool) string {
	if exists {
		return "live"
	}
	return "deleted"
}

func orNone(s string) string {
	if s == "" {
		return "no entity"
	}
	return s
}
