package changescope

import (
	"fmt"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/index"
)

// Delete retracts e together with its cascade closure.
//
// The closure is e plus, transitively, every entity e points at through a
// CascadeDelete reference and every entity pointing at e through a
// CascadeDeleteBy reference (which includes every required reference).
// OnRetract hooks of the member types run first, while the closure is
// intact. Then every member is retracted along with all references to it.
// Finally the callbacks returned by the hooks run; a write from a callback
// or from an effect it queues that asserts on a member, or references one,
// fails with a cascade violation.
func (s *ChangeScope) Delete(e datom.EID) error {
	q := s.Q()
	if err := q.AssertEntityExists(e); err != nil {
		return err
	}

	closure := CascadeClosure(q, e)

	var callbacks []func(*ChangeScope) error
	for _, x := range closure {
		t, ok := s.entityType(q, x)
		if !ok || t.OnRetract == nil {
			continue
		}
		cb, err := t.OnRetract(q, x)
		if err != nil {
			return fmt.Errorf("on retract of %s (%s): %w", x, t.Ident, err)
		}
		if cb != nil {
			callbacks = append(callbacks, cb)
		}
	}

	for _, x := range closure {
		if _, err := s.Mutate(db.RetractEntity{E: x}); err != nil {
			return err
		}
	}

	if len(callbacks) == 0 {
		return nil
	}
	members := make(map[datom.EID]struct{}, len(closure))
	for _, x := range closure {
		members[x] = struct{}{}
	}
	return s.runGuarded(s.ctx, members, func() error {
		for _, cb := range callbacks {
			if err := cb(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// runGuarded runs body with ctx bound to a cascade guard over members.
// Effects queued by body stay guarded when they run later.
func (s *ChangeScope) runGuarded(ctx *db.DbContext[db.Mut], members map[datom.EID]struct{}, body func() error) error {
	inner, err := ctx.Impl()
	if err != nil {
		return err
	}
	queued := len(s.state.effects)
	err = ctx.Bind(&cascadeGuard{inner: inner, members: members}, body)
	for i := queued; i < len(s.state.effects); i++ {
		eff := s.state.effects[i]
		s.state.effects[i] = func(ctx *db.DbContext[db.Mut]) error {
			return s.runGuarded(ctx, members, func() error { return eff(ctx) })
		}
	}
	return err
}

// CascadeClosure returns e and every entity deleting e must also delete,
// in discovery order.
func CascadeClosure(q db.Q, e datom.EID) []datom.EID {
	seen := map[datom.EID]bool{e: true}
	order := []datom.EID{e}

	for i := 0; i < len(order); i++ {
		x := order[i]
		for _, d := range q.QueryIndex(index.Entity{E: x}) {
			if !d.A.Schema().CascadeDelete() {
				continue
			}
			if ref, ok := d.V.(datom.Ref); ok && !seen[ref.EID()] {
				seen[ref.EID()] = true
				order = append(order, ref.EID())
			}
		}
		for _, d := range q.QueryIndex(index.RefsTo{E: x}) {
			if d.A.Schema().CascadeDeleteBy() && !seen[d.E] {
				seen[d.E] = true
				order = append(order, d.E)
			}
		}
	}
	return order
}

func (s *ChangeScope) entityType(q db.Q, e datom.EID) (EntityType, bool) {
	ref, ok := db.SingleOrZero(q, e, datom.DbType).(datom.Ref)
	if !ok {
		return EntityType{}, false
	}
	return s.typeOf(ref.EID())
}

// cascadeGuard rejects writes that touch a deleted closure.
type cascadeGuard struct {
	inner   db.Mut
	members map[datom.EID]struct{}
}

func (g *cascadeGuard) Mutate(exp db.Expansion) (datom.Novelty, error) {
	for _, op := range exp.Ops {
		var (
			e datom.EID
			a datom.Attribute
			v datom.Value
		)
		switch op := op.(type) {
		case db.Assert:
			e, a, v = op.E, op.A, op.V
		case db.AssertWithTX:
			e, a, v = op.E, op.A, op.V
		default:
			continue
		}
		if _, ok := g.members[e]; ok {
			return nil, datom.NewCascadeError(e, a, "write to an entity deleted in this transaction")
		}
		if ref, ok := v.(datom.Ref); ok {
			if _, ok := g.members[ref.EID()]; ok {
				return nil, datom.NewCascadeError(e, a, fmt.Sprintf("reference to %s, deleted in this transaction", ref.EID()))
			}
		}
	}
	return g.inner.Mutate(exp)
}

func (g *cascadeGuard) QueryIndex(q index.Query) []datom.Datom { return g.inner.QueryIndex(q) }

func (g *cascadeGuard) CachedQuery(cq db.CachedQuery) (db.CachedResult, error) {
	return g.inner.CachedQuery(cq)
}

func (g *cascadeGuard) AssertEntityExists(e datom.EID) error { return g.inner.AssertEntityExists(e) }

func (g *cascadeGuard) Original() db.Q { return g.inner.Original() }

func (g *cascadeGuard) NewEID(part datom.Partition) datom.EID { return g.inner.NewEID(part) }

func (g *cascadeGuard) TX() datom.TX { return g.inner.TX() }
