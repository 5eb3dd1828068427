package db

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
)

func TestMapAttribute_PreservesTX(t *testing.T) {
	first := NewMutableDb(testDB(t), datom.NewTX(2), nil)
	mustApply(t, first, Add{E: eid(1), A: nameAttr, V: datom.String("alice")})
	mustApply(t, first, Add{E: eid(2), A: nameAttr, V: datom.String("bob")})

	mut := NewMutableDb(first.Snapshot(), datom.NewTX(3), nil)
	n := mustApply(t, mut, MapAttribute{A: nameAttr, F: func(v datom.Value) (datom.Value, error) {
		return datom.String(strings.ToUpper(string(v.(datom.String)))), nil
	}})

	require.Len(t, n, 4)
	for _, d := range n.Asserted() {
		assert.Equal(t, datom.NewTX(2), d.TX, "new value keeps the original tx")
	}
	for _, d := range n.Retracted() {
		assert.Equal(t, datom.NewTX(3), d.TX)
	}
	v, _ := Value(mut, eid(1), nameAttr)
	assert.Equal(t, datom.String("ALICE"), v)
}

func TestMapAttribute_ProblemsContained(t *testing.T) {
	mut := NewMutableDb(testDB(t), datom.NewTX(2), nil)
	for i, name := range []string{"ok", "error", "panic", "null", "ref"} {
		mustApply(t, mut, Add{E: eid(int64(i + 1)), A: nameAttr, V: datom.String(name)})
	}

	mustApply(t, mut, MapAttribute{A: nameAttr, F: func(v datom.Value) (datom.Value, error) {
		switch v {
		case datom.String("error"):
			return nil, errors.New("cannot convert")
		case datom.String("panic"):
			panic("bad input")
		case datom.String("null"):
			return nil, nil
		case datom.String("ref"):
			return datom.Ref(eid(1)), nil
		}
		return datom.String("converted"), nil
	}})

	v, _ := Value(mut, eid(1), nameAttr)
	assert.Equal(t, datom.String("converted"), v, "good values migrate")

	problems := DeserializationProblems(mut, nameAttr)
	require.Len(t, problems, 4)
	kinds := make([]datom.ProblemKind, len(problems))
	for i, d := range problems {
		kinds[i] = d.V.(datom.Problem).Kind
	}
	assert.Equal(t, []datom.ProblemKind{
		datom.ProblemException,
		datom.ProblemException,
		datom.ProblemGotNull,
		datom.ProblemUnexpected,
	}, kinds)
	assert.Contains(t, problems[1].V.(datom.Problem).Message, "bad input")

	// A second run leaves problems alone.
	n := mustApply(t, mut, MapAttribute{A: nameAttr, F: func(v datom.Value) (datom.Value, error) { return v, nil }})
	assert.True(t, n.IsEmpty())
}
