package datom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_PacksFlags(t *testing.T) {
	s, err := NewSchema(SchemaOptions{Cardinality: Many, Indexed: true, Unique: true})
	require.NoError(t, err)

	assert.Equal(t, Many, s.Cardinality())
	assert.True(t, s.Indexed())
	assert.True(t, s.Unique())
	assert.False(t, s.IsRef())
	assert.False(t, s.Required())
	assert.True(t, s.LookupByValue())
}

func TestNewSchema_RequiredRefIsCascadeDeleteBy(t *testing.T) {
	s, err := NewSchema(SchemaOptions{IsRef: true, Required: true})
	require.NoError(t, err)

	assert.True(t, s.CascadeDeleteBy(), "required reference must always be cascade-delete-by")
	assert.True(t, s.LookupByValue(), "references are always looked up")
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts SchemaOptions
	}{
		{"required many", SchemaOptions{Cardinality: Many, Required: true}},
		{"indexed ref", SchemaOptions{IsRef: true, Indexed: true}},
		{"cascade delete on value", SchemaOptions{CascadeDelete: true}},
		{"cascade delete by on value", SchemaOptions{CascadeDeleteBy: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.opts)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestSchema_OptionsRoundTrip(t *testing.T) {
	opts := SchemaOptions{Cardinality: Many, IsRef: true, CascadeDelete: true}
	s := MustSchema(opts)
	assert.Equal(t, opts, s.Options())
}

func TestMustSchema_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustSchema(SchemaOptions{Cardinality: Many, Required: true})
	})
}

func TestAttribute_RoundTrip(t *testing.T) {
	schemas := []SchemaOptions{
		{},
		{Cardinality: Many},
		{IsRef: true},
		{IsRef: true, Required: true},
		{IsRef: true, Cardinality: Many, CascadeDelete: true},
		{Indexed: true, Unique: true, Required: true},
	}

	for _, opts := range schemas {
		schema := MustSchema(opts)
		for _, seq := range []int64{1, 64, 4242, (1 << AttributeIDBits) - 1} {
			eid := NewEID(SchemaPart, seq)
			attr, err := NewAttribute(eid, schema)
			require.NoError(t, err)

			assert.Equal(t, eid, attr.EID(), "eid must survive packing")
			assert.Equal(t, schema, attr.Schema(), "schema must survive packing")
			assert.Equal(t, AttributeFromEID(eid, schema), attr)
		}
	}
}

func TestAttribute_Equality(t *testing.T) {
	eid := NewEID(SchemaPart, 100)
	one := MustAttribute(eid, MustSchema(SchemaOptions{}))
	many := MustAttribute(eid, MustSchema(SchemaOptions{Cardinality: Many}))

	assert.Equal(t, one, MustAttribute(eid, MustSchema(SchemaOptions{})))
	assert.NotEqual(t, one, many, "same eid with different schema is a different attribute")
}

func TestNewAttribute_RejectsOutOfRange(t *testing.T) {
	schema := MustSchema(SchemaOptions{})

	_, err := NewAttribute(NewEID(DefaultPart, 10), schema)
	assert.True(t, IsConfigurationError(err), "attribute outside schema partition")

	_, err = NewAttribute(NewEID(SchemaPart, 1<<AttributeIDBits), schema)
	assert.True(t, IsConfigurationError(err), "attribute id too large")

	_, err = NewAttribute(NewEID(SchemaPart, 0), schema)
	assert.True(t, IsConfigurationError(err), "zero attribute id")
}

func TestAttributeAllocator_Sequential(t *testing.T) {
	al := NewAttributeAllocator()

	a1, err := al.New(SchemaOptions{})
	require.NoError(t, err)
	a2, err := al.New(SchemaOptions{Cardinality: Many})
	require.NoError(t, err)

	assert.Equal(t, int64(FirstUserAttributeSeq), a1.EID().Seq())
	assert.Equal(t, int64(FirstUserAttributeSeq+1), a2.EID().Seq())
	assert.False(t, IsBuiltin(a1.EID()))
}

func TestEID_Partition(t *testing.T) {
	e := NewEID(DefaultPart, 12345)
	assert.Equal(t, DefaultPart, e.Partition())
	assert.Equal(t, int64(12345), e.Seq())

	tx := NewTX(7)
	assert.Equal(t, TxPart, tx.Partition())
	assert.Equal(t, int64(7), tx.Seq())
}

func TestBuiltins_Valid(t *testing.T) {
	for _, b := range BuiltinAttributes {
		assert.NoError(t, b.Attr.Schema().Validate(), b.Ident)
		assert.True(t, IsBuiltin(b.Attr.EID()), b.Ident)
	}
	assert.True(t, DbType.Schema().CascadeDeleteBy())
}
