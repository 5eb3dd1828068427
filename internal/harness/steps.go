package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// ScenarioError reports a scenario that cannot run: it names a label, type,
// attribute or conversion that does not exist, or gives a value that does
// not fit its attribute. It aborts the whole run.
type ScenarioError struct {
	Step    string
	Message string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func scenarioErrorf(step, format string, args ...any) *ScenarioError {
	return &ScenarioError{Step: step, Message: fmt.Sprintf(format, args...)}
}

// txnState holds the labels bound by one transaction. They become visible
// to later transactions only if this one commits.
type txnState struct {
	h      *Harness
	staged map[string]datom.EID
}

func (st *txnState) execute(s *changescope.ChangeScope, step Step) error {
	switch {
	case step.New != nil:
		return st.executeNew(s, step.New)
	case step.Upsert != nil:
		return st.executeUpsert(s, step.Upsert)
	case step.Set != nil:
		e, a, v, err := st.write("set", step.Set)
		if err != nil {
			return err
		}
		return s.Set(e, a, v)
	case step.Add != nil:
		e, a, v, err := st.write("add", step.Add)
		if err != nil {
			return err
		}
		return s.Add(e, a, v)
	case step.Remove != nil:
		e, a, v, err := st.write("remove", step.Remove)
		if err != nil {
			return err
		}
		return s.Remove(e, a, v)
	case step.Clear != nil:
		e, err := st.entity("clear", step.Clear.Entity)
		if err != nil {
			return err
		}
		a, err := st.attribute("clear", step.Clear.Attribute)
		if err != nil {
			return err
		}
		return s.Clear(e, a)
	case step.Delete != nil:
		e, err := st.entity("delete", step.Delete.Entity)
		if err != nil {
			return err
		}
		return s.Delete(e)
	case step.Map != nil:
		a, err := st.attribute("map", step.Map.Attribute)
		if err != nil {
			return err
		}
		f, ok := Conversion(step.Map.Using)
		if !ok {
			return scenarioErrorf("map", "unknown conversion %q", step.Map.Using)
		}
		_, err = s.Mutate(db.MapAttribute{A: a, F: f})
		return err
	default:
		return scenarioErrorf("step", "step is empty")
	}
}

func (st *txnState) executeNew(s *changescope.ChangeScope, step *NewStep) error {
	typ, err := st.entityType("new", step.Type)
	if err != nil {
		return err
	}
	values, err := st.attrValues("new", step.Values)
	if err != nil {
		return err
	}
	e, err := s.New(typ, values...)
	if err != nil {
		return err
	}
	return st.bind("new", step.As, e)
}

func (st *txnState) executeUpsert(s *changescope.ChangeScope, step *UpsertStep) error {
	typ, err := st.entityType("upsert", step.Type)
	if err != nil {
		return err
	}
	keys, err := st.attrValues("upsert", step.Key)
	if err != nil {
		return err
	}
	if len(keys) != 1 {
		return scenarioErrorf("upsert", "key must have exactly one non-null attribute")
	}
	values, err := st.attrValues("upsert", step.Values)
	if err != nil {
		return err
	}
	e, err := s.Upsert(typ, keys[0], values...)
	if err != nil {
		return err
	}
	return st.bind("upsert", step.As, e)
}

func (st *txnState) bind(step, label string, e datom.EID) error {
	if label == "" {
		return nil
	}
	if prev, ok := st.lookup(label); ok && prev != e {
		return scenarioErrorf(step, "label %q is already bound to %s", label, prev)
	}
	st.staged[label] = e
	return nil
}

func (st *txnState) write(step string, w *WriteStep) (datom.EID, datom.Attribute, datom.Value, error) {
	e, err := st.entity(step, w.Entity)
	if err != nil {
		return 0, 0, nil, err
	}
	a, err := st.attribute(step, w.Attribute)
	if err != nil {
		return 0, 0, nil, err
	}
	// add and remove name one element of a many attribute.
	v, err := st.value(step, a, w.Value, step == "set")
	if err != nil {
		return 0, 0, nil, err
	}
	return e, a, v, nil
}

func (st *txnState) lookup(label string) (datom.EID, bool) {
	if e, ok := st.staged[label]; ok {
		return e, true
	}
	if e, ok := st.h.labels[label]; ok {
		return e, true
	}
	if t, ok := st.h.schema.Type(label); ok {
		return t.E, true
	}
	return 0, false
}

func (st *txnState) entity(step, label string) (datom.EID, error) {
	e, ok := st.lookup(label)
	if !ok {
		return 0, scenarioErrorf(step, "unknown entity %q", label)
	}
	return e, nil
}

func (st *txnState) entityType(step, ident string) (datom.EID, error) {
	t, ok := st.h.schema.Type(ident)
	if !ok {
		return 0, scenarioErrorf(step, "unknown entity type %q", ident)
	}
	return t.E, nil
}

func (st *txnState) attribute(step, ident string) (datom.Attribute, error) {
	a, ok := st.h.schema.Attribute(ident)
	if !ok {
		return 0, scenarioErrorf(step, "unknown attribute %q", ident)
	}
	return a, nil
}

// attrValues converts a values map in ident order. Null values are left
// out.
func (st *txnState) attrValues(step string, values map[string]any) ([]db.AttrValue, error) {
	idents := make([]string, 0, len(values))
	for ident := range values {
		idents = append(idents, ident)
	}
	sort.Strings(idents)

	out := make([]db.AttrValue, 0, len(idents))
	for _, ident := range idents {
		a, err := st.attribute(step, ident)
		if err != nil {
			return nil, err
		}
		v, err := st.value(step, a, values[ident], true)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out = append(out, db.AttrValue{A: a, V: v})
	}
	return out, nil
}

// value converts a scenario value for a. whole is true when the value
// stands for every value of a cardinality-many attribute, which is then a
// list.
func (st *txnState) value(step string, a datom.Attribute, raw any, whole bool) (datom.Value, error) {
	if raw == nil {
		return nil, nil
	}
	many := whole && a.Schema().Cardinality() == datom.Many

	if many {
		list, ok := raw.([]any)
		if !ok {
			return nil, scenarioErrorf(step, "%s takes a list, got %v", st.h.attributeName(a), raw)
		}
		out := make(datom.Array, 0, len(list))
		for _, elem := range list {
			v, err := st.value(step, a, elem, false)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	if a.Schema().IsRef() {
		label, ok := raw.(string)
		if !ok {
			return nil, scenarioErrorf(step, "%s takes an entity label, got %v", st.h.attributeName(a), raw)
		}
		e, err := st.entity(step, label)
		if err != nil {
			return nil, err
		}
		return datom.Ref(e), nil
	}

	v, err := datom.FromAny(raw)
	if err != nil {
		return nil, scenarioErrorf(step, "%s: %v", st.h.attributeName(a), err)
	}
	return v, nil
}
