package changescope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/index"
)

func schemaEID(seq int64) datom.EID { return datom.NewEID(datom.SchemaPart, seq) }

func attr(seq int64, opts datom.SchemaOptions) datom.Attribute {
	return datom.MustAttribute(schemaEID(seq), datom.MustSchema(opts))
}

var (
	personName  = attr(100, datom.SchemaOptions{Required: true})
	personEmail = attr(101, datom.SchemaOptions{Unique: true})

	projectTitle = attr(110, datom.SchemaOptions{})
	projectOwner = attr(111, datom.SchemaOptions{IsRef: true, Required: true})
	projectTasks = attr(112, datom.SchemaOptions{IsRef: true, Cardinality: datom.Many, CascadeDelete: true})

	taskLabel    = attr(120, datom.SchemaOptions{})
	taskAssignee = attr(121, datom.SchemaOptions{IsRef: true})

	personType = EntityType{
		E:     schemaEID(200),
		Ident: "Person",
		Attributes: []AttributeDef{
			{Ident: "person/name", Attr: personName},
			{Ident: "person/email", Attr: personEmail},
		},
	}
	projectType = EntityType{
		E:     schemaEID(201),
		Ident: "Project",
		Attributes: []AttributeDef{
			{Ident: "project/title", Attr: projectTitle},
			{Ident: "project/owner", Attr: projectOwner},
			{Ident: "project/tasks", Attr: projectTasks},
		},
	}
	taskType = EntityType{
		E:     schemaEID(202),
		Ident: "Task",
		Attributes: []AttributeDef{
			{Ident: "task/label", Attr: taskLabel},
			{Ident: "task/assignee", Attr: taskAssignee},
		},
	}
)

type fixture struct {
	mut   *db.MutableDb
	scope *ChangeScope
}

func newFixture(t *testing.T, types ...EntityType) *fixture {
	t.Helper()

	mut := db.NewMutableDb(db.Empty(nil), datom.NewTX(1), nil)
	exp, err := db.BootstrapSchema().Expand(mut)
	require.NoError(t, err)
	_, err = mut.Mutate(exp)
	require.NoError(t, err)

	ctx := db.NewDbContext[db.Mut](db.EnforcingUniquenessConstraints(mut, datom.DefaultPart))
	s := New(ctx, NewRegistry())
	for _, typ := range types {
		require.NoError(t, s.Register(typ))
	}
	return &fixture{mut: mut, scope: s}
}

func TestRegister_Idempotent(t *testing.T) {
	f := newFixture(t, personType)
	before := len(f.scope.Novelty())

	require.NoError(t, f.scope.Register(personType))
	assert.Len(t, f.scope.Novelty(), before, "second registration writes nothing")
	assert.Len(t, f.scope.Registered(), 1)

	a, err := db.AttributeByIdent(f.mut, "person/email")
	require.NoError(t, err)
	assert.Equal(t, personEmail, a)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t, personType)

	clash := taskType
	clash.Ident = "Person"
	assert.True(t, datom.IsConfigurationError(f.scope.Register(clash)))

	redeclared := EntityType{
		E:          schemaEID(203),
		Ident:      "Other",
		Attributes: []AttributeDef{{Ident: "person/name", Attr: attr(100, datom.SchemaOptions{Cardinality: datom.Many})}},
	}
	assert.True(t, datom.IsConfigurationError(f.scope.Register(redeclared)))

	stolen := EntityType{
		E:          schemaEID(204),
		Ident:      "Thief",
		Attributes: []AttributeDef{{Ident: "person/name", Attr: attr(130, datom.SchemaOptions{})}},
	}
	assert.True(t, datom.IsConfigurationError(f.scope.Register(stolen)), "ident already bound to another attribute")

	bad := EntityType{E: datom.NewEID(datom.DefaultPart, 1), Ident: "Bad"}
	assert.True(t, datom.IsConfigurationError(f.scope.Register(bad)))
}

func TestNew_RequiredCheckedBeforeWrite(t *testing.T) {
	f := newFixture(t, personType)
	before := len(f.scope.Novelty())

	_, err := f.scope.New(personType.E, db.AttrValue{A: personEmail, V: datom.String("a@x")})
	require.Error(t, err)
	assert.True(t, datom.IsRequiredMissing(err))
	assert.Len(t, f.scope.Novelty(), before, "nothing written")
	assert.Empty(t, db.Entities(f.mut, personType.E))

	e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
	require.NoError(t, err)
	assert.Equal(t, []datom.EID{e}, db.Entities(f.mut, personType.E))
	assert.Equal(t, datom.DefaultPart, e.Partition())
}

func TestNew_UnregisteredType(t *testing.T) {
	f := newFixture(t)
	_, err := f.scope.New(personType.E)
	assert.True(t, datom.IsConfigurationError(err))
}

func TestSet_EqualValueWritesNothing(t *testing.T) {
	f := newFixture(t, personType)
	e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
	require.NoError(t, err)
	before := len(f.scope.Novelty())

	require.NoError(t, f.scope.Set(e, personName, datom.String("Ada")))
	assert.Len(t, f.scope.Novelty(), before)

	require.NoError(t, f.scope.Update(e, personName, func(v datom.Value) (datom.Value, error) {
		return v.(datom.String) + "!", nil
	}))
	assert.Equal(t, datom.String("Ada!"), db.SingleOrZero(f.mut, e, personName))

	assert.True(t, datom.IsRequiredMissing(f.scope.Clear(e, personName)))
}

func TestSetAndRemove_RequiredAttributeKeepsValue(t *testing.T) {
	f := newFixture(t, personType)
	e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
	require.NoError(t, err)
	before := len(f.scope.Novelty())

	assert.True(t, datom.IsRequiredMissing(f.scope.Set(e, personName, nil)))
	assert.True(t, datom.IsRequiredMissing(f.scope.Remove(e, personName, datom.String("Ada"))))
	assert.True(t, datom.IsRequiredMissing(f.scope.Update(e, personName, func(datom.Value) (datom.Value, error) {
		return nil, nil
	})))

	assert.Len(t, f.scope.Novelty(), before, "nothing written")
	assert.Equal(t, datom.String("Ada"), db.SingleOrZero(f.mut, e, personName))
	require.NoError(t, f.scope.CheckRequired())
}

func TestCheckRequired(t *testing.T) {
	t.Run("raw retraction of a required attribute", func(t *testing.T) {
		f := newFixture(t, personType)
		e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
		require.NoError(t, err)

		_, err = f.scope.Mutate(db.RetractAttribute{E: e, A: personName})
		require.NoError(t, err)
		assert.True(t, datom.IsRequiredMissing(f.scope.CheckRequired()))
	})

	t.Run("replaced value", func(t *testing.T) {
		f := newFixture(t, personType)
		e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
		require.NoError(t, err)

		require.NoError(t, f.scope.Set(e, personName, datom.String("Ada L.")))
		require.NoError(t, f.scope.CheckRequired())
	})

	t.Run("deleted entity", func(t *testing.T) {
		f := newFixture(t, personType)
		e, err := f.scope.New(personType.E, db.AttrValue{A: personName, V: datom.String("Ada")})
		require.NoError(t, err)

		require.NoError(t, f.scope.Delete(e))
		require.NoError(t, f.scope.CheckRequired())
	})
}

func TestUpsert(t *testing.T) {
	f := newFixture(t, personType)

	e1, err := f.scope.Upsert(personType.E,
		db.AttrValue{A: personEmail, V: datom.String("a@x")},
		db.AttrValue{A: personName, V: datom.String("Ada")})
	require.NoError(t, err)

	e2, err := f.scope.Upsert(personType.E,
		db.AttrValue{A: personEmail, V: datom.String("a@x")},
		db.AttrValue{A: personName, V: datom.String("Ada Lovelace")})
	require.NoError(t, err)

	assert.Equal(t, e1, e2)
	assert.Equal(t, datom.String("Ada Lovelace"), db.SingleOrZero(f.mut, e1, personName))

	_, err = f.scope.Upsert(personType.E, db.AttrValue{A: personName, V: datom.String("x")})
	assert.True(t, datom.IsConfigurationError(err), "key must be unique")
}

func TestUniquenessThroughScope(t *testing.T) {
	f := newFixture(t, personType)
	_, err := f.scope.New(personType.E,
		db.AttrValue{A: personName, V: datom.String("Ada")},
		db.AttrValue{A: personEmail, V: datom.String("a@x")})
	require.NoError(t, err)

	_, err = f.scope.New(personType.E,
		db.AttrValue{A: personName, V: datom.String("Bob")},
		db.AttrValue{A: personEmail, V: datom.String("a@x")})
	assert.True(t, datom.IsUniquenessError(err))
}

func TestEffects_RunInOrder(t *testing.T) {
	f := newFixture(t, personType)
	var order []string

	require.NoError(t, f.scope.Effect(func(s *ChangeScope) error {
		order = append(order, "first")
		return s.Effect(func(*ChangeScope) error {
			order = append(order, "nested")
			return nil
		})
	}))
	require.NoError(t, f.scope.Effect(func(*ChangeScope) error {
		order = append(order, "second")
		return nil
	}))
	assert.Empty(t, order, "effects are deferred")

	require.NoError(t, f.scope.RunEffects())
	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestEffects_ErrorStops(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	require.NoError(t, f.scope.Effect(func(*ChangeScope) error { return boom }))
	assert.ErrorIs(t, f.scope.RunEffects(), boom)
}

func TestWithDefaultPart(t *testing.T) {
	f := newFixture(t, personType)

	var e datom.EID
	err := f.scope.WithDefaultPart(datom.CommonPart, func(s *ChangeScope) error {
		var err error
		e, err = s.New(personType.E, db.AttrValue{A: personName, V: datom.String("shared")})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, datom.CommonPart, e.Partition())

	var child datom.EID
	err = f.scope.WithPartOf(e, func(s *ChangeScope) error {
		var err error
		child, err = s.New(personType.E, db.AttrValue{A: personName, V: datom.String("sibling")})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, datom.CommonPart, child.Partition())
	assert.NotEqual(t, e, child)
}

func TestMutate_PoisonedContext(t *testing.T) {
	f := newFixture(t, personType)
	f.scope.Context().Poison(errors.New("aborted"))

	_, err := f.scope.Mutate(db.Add{E: datom.NewEID(datom.DefaultPart, 1), A: personName, V: datom.String("x")})
	assert.True(t, datom.IsContextPoisoned(err))
	assert.Panics(t, func() { f.scope.Q() })
	assert.Empty(t, f.mut.QueryIndex(index.Column{A: personName}))
}
