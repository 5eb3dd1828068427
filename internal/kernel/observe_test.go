package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

func TestObserve_Affected(t *testing.T) {
	k := newKernel(t)
	ada := newPerson(t, k, "Ada", "ada@example.com")
	bob := newPerson(t, k, "Bob", "bob@example.com")

	obs, err := k.Observe(func(q db.Q) (any, error) {
		return db.Single(q, ada, nameAttr)
	})
	require.NoError(t, err)
	assert.Equal(t, datom.String("Ada"), obs.Value)
	assert.Positive(t, obs.Patterns())

	unrelated, err := k.Transact(context.Background(), func(s *changescope.ChangeScope) error {
		return s.Set(bob, nameAttr, datom.String("Robert"))
	})
	require.NoError(t, err)
	assert.False(t, obs.Affected(unrelated), "writes to other entities do not affect the read")

	related, err := k.Transact(context.Background(), func(s *changescope.ChangeScope) error {
		return s.Set(ada, nameAttr, datom.String("Ada L."))
	})
	require.NoError(t, err)
	assert.True(t, obs.Affected(related))
}

func TestObserve_ThroughCachedQuery(t *testing.T) {
	k := newKernel(t)
	newPerson(t, k, "Ada", "ada@example.com")

	people := db.NewCachedQuery("people", func(q db.Q) (any, error) {
		return db.Entities(q, personType.E), nil
	})
	read := func(q db.Q) (any, error) { return db.Cached[[]datom.EID](q, people) }

	// Warm the cache so the observed read is a hit.
	_, err := read(k.DB())
	require.NoError(t, err)

	obs, err := k.Observe(read)
	require.NoError(t, err)
	assert.Len(t, obs.Value, 1)

	change, err := k.Transact(context.Background(), func(s *changescope.ChangeScope) error {
		_, err := s.New(personType.E, db.AttrValue{A: nameAttr, V: datom.String("Bob")})
		return err
	})
	require.NoError(t, err)
	assert.True(t, obs.Affected(change), "a cache hit still reports the patterns it depends on")
}

func TestObserve_ErrorPropagates(t *testing.T) {
	k := newKernel(t)
	_, err := k.Observe(func(q db.Q) (any, error) {
		return db.Single(q, datom.NewEID(datom.DefaultPart, 999), nameAttr)
	})
	assert.Error(t, err)
}
