package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
)

var (
	nameAttr   = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 100), datom.MustSchema(datom.SchemaOptions{}))
	tagsAttr   = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 101), datom.MustSchema(datom.SchemaOptions{Cardinality: datom.Many}))
	emailAttr  = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 102), datom.MustSchema(datom.SchemaOptions{Unique: true}))
	parentAttr = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 103), datom.MustSchema(datom.SchemaOptions{IsRef: true}))
	ageAttr    = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 104), datom.MustSchema(datom.SchemaOptions{}))
)

func eid(seq int64) datom.EID { return datom.NewEID(datom.DefaultPart, seq) }

// testDB returns a database holding the built-in schema and the test
// attributes, committed at tx 1.
func testDB(t *testing.T) *DB {
	t.Helper()

	mut := NewMutableDb(Empty(nil), datom.NewTX(1), nil)
	mustApply(t, mut, BootstrapSchema())
	mustApply(t, mut, ReifyEntities{Entities: []ReifiedEntity{
		AttributeEntity("person/name", nameAttr),
		AttributeEntity("person/tags", tagsAttr),
		AttributeEntity("person/email", emailAttr),
		AttributeEntity("person/parent", parentAttr),
		AttributeEntity("person/age", ageAttr),
	}})
	return mut.Snapshot()
}

func mustApply(t *testing.T, m Mut, instr Instruction) datom.Novelty {
	t.Helper()
	n, err := apply(m, instr)
	require.NoError(t, err)
	return n
}

func apply(m Mut, instr Instruction) (datom.Novelty, error) {
	exp, err := instr.Expand(m)
	if err != nil {
		return nil, err
	}
	return m.Mutate(exp)
}
