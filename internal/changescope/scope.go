// Package changescope provides the write API available inside a
// transaction: entity-level set/add/remove, construction with required
// attribute checks, idempotent schema registration, cascade delete and
// deferred effects.
package changescope

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/index"
)

// scopeState is shared by a scope and the scopes derived from it.
type scopeState struct {
	effects  []db.Effect
	novelty  datom.Novelty
	pending  map[datom.EID]EntityType
	order    []datom.EID
	registry *Registry
}

// ChangeScope is the capability to write inside one transaction.
// It is not safe for concurrent use.
type ChangeScope struct {
	ctx   *db.DbContext[db.Mut]
	part  datom.Partition
	state *scopeState
}

// New returns a scope writing through ctx. New entities go to
// datom.DefaultPart until WithDefaultPart says otherwise.
func New(ctx *db.DbContext[db.Mut], registry *Registry) *ChangeScope {
	if registry == nil {
		registry = NewRegistry()
	}
	return &ChangeScope{
		ctx:  ctx,
		part: datom.DefaultPart,
		state: &scopeState{
			pending:  make(map[datom.EID]EntityType),
			registry: registry,
		},
	}
}

// Context returns the scope's write context.
func (s *ChangeScope) Context() *db.DbContext[db.Mut] { return s.ctx }

// Q returns the current read view. It panics when the context is
// poisoned.
func (s *ChangeScope) Q() db.Q { return s.ctx.MustImpl() }

// Novelty returns everything the scope has written so far.
func (s *ChangeScope) Novelty() datom.Novelty { return s.state.novelty }

// Registered returns the entity types registered in this scope, in
// registration order.
func (s *ChangeScope) Registered() []EntityType {
	out := make([]EntityType, 0, len(s.state.order))
	for _, e := range s.state.order {
		out = append(out, s.state.pending[e])
	}
	return out
}

// Mutate expands instr against the current view and applies it. Effects of
// the expansion are queued for RunEffects.
func (s *ChangeScope) Mutate(instr db.Instruction) (datom.Novelty, error) {
	m, err := s.ctx.Impl()
	if err != nil {
		return nil, err
	}
	exp, err := instr.Expand(m)
	if err != nil {
		return nil, err
	}
	n, err := m.Mutate(exp)
	if err != nil {
		return nil, err
	}
	s.state.novelty = append(s.state.novelty, n...)
	s.state.effects = append(s.state.effects, exp.Effects...)
	return n, nil
}

// Set makes v the value of a on e. A nil v retracts unless a is required;
// an equal value writes nothing.
func (s *ChangeScope) Set(e datom.EID, a datom.Attribute, v datom.Value) error {
	if v == nil && a.Schema().Required() {
		return datom.NewRequiredMissingError(e, a)
	}
	_, err := s.Mutate(db.Set{E: e, A: a, V: v})
	return err
}

// Add asserts one more value of a cardinality-many attribute.
func (s *ChangeScope) Add(e datom.EID, a datom.Attribute, v datom.Value) error {
	_, err := s.Mutate(db.Add{E: e, A: a, V: v})
	return err
}

// Remove retracts one value. Required attributes hold exactly one value,
// so they cannot be removed.
func (s *ChangeScope) Remove(e datom.EID, a datom.Attribute, v datom.Value) error {
	if a.Schema().Required() {
		return datom.NewRequiredMissingError(e, a)
	}
	_, err := s.Mutate(db.Remove{E: e, A: a, V: v})
	return err
}

// Clear retracts every value of a on e. Required attributes cannot be
// cleared.
func (s *ChangeScope) Clear(e datom.EID, a datom.Attribute) error {
	if a.Schema().Required() {
		return datom.NewRequiredMissingError(e, a)
	}
	_, err := s.Mutate(db.RetractAttribute{E: e, A: a})
	return err
}

// CheckRequired fails when a required attribute retracted in this scope
// left a still-existing entity without a value. Deleted entities pass.
func (s *ChangeScope) CheckRequired() error {
	q, err := s.ctx.Impl()
	if err != nil {
		return err
	}
	seen := make(map[datom.EAV]struct{})
	for _, d := range s.state.novelty {
		if d.Added || !d.A.Schema().Required() {
			continue
		}
		key := datom.EAV{E: d.E, A: d.A}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if db.Exists(q, d.E) && len(q.QueryIndex(index.GetMany{E: d.E, A: d.A})) == 0 {
			return datom.NewRequiredMissingError(d.E, d.A)
		}
	}
	return nil
}

// Update replaces the value of a on e with f(current). current is nil
// when there is no value.
func (s *ChangeScope) Update(e datom.EID, a datom.Attribute, f func(datom.Value) (datom.Value, error)) error {
	next, err := f(db.SingleOrZero(s.Q(), e, a))
	if err != nil {
		return err
	}
	return s.Set(e, a, next)
}

// New creates an entity of type typ in the scope's default partition.
// Every required attribute of the type must be given a value; the check
// runs before anything is written.
func (s *ChangeScope) New(typ datom.EID, values ...db.AttrValue) (datom.EID, error) {
	t, ok := s.typeOf(typ)
	if !ok {
		return 0, datom.NewConfigurationError("entity type %s is not registered", typ)
	}
	for _, def := range t.Required() {
		if !hasValue(values, def.Attr) {
			return 0, datom.NewRequiredMissingError(0, def.Attr)
		}
	}

	m, err := s.ctx.Impl()
	if err != nil {
		return 0, err
	}
	e := m.NewEID(s.part)
	if _, err := s.Mutate(db.CreateEntity{E: e, Type: typ, Values: values}); err != nil {
		return 0, err
	}
	return e, nil
}

// Upsert finds the entity of type typ holding key and sets values on it,
// or creates it with key and values. key must be on a unique attribute.
func (s *ChangeScope) Upsert(typ datom.EID, key db.AttrValue, values ...db.AttrValue) (datom.EID, error) {
	if !key.A.Schema().Unique() {
		return 0, datom.NewConfigurationError("upsert key %s is not unique", key.A)
	}
	if key.V == nil {
		return 0, datom.NewConfigurationError("upsert key %s has no value", key.A)
	}

	e, ok := db.LookupOne(s.Q(), key.A, key.V)
	if !ok {
		return s.New(typ, append([]db.AttrValue{key}, values...)...)
	}
	if db.SingleOrZero(s.Q(), e, datom.DbType) != datom.Ref(typ) {
		return 0, datom.NewConfigurationError("upsert key %s matches %s, which is not a %s", key.A, e, typ)
	}
	for _, av := range values {
		if av.V == nil && av.A.Schema().Required() {
			return 0, datom.NewRequiredMissingError(e, av.A)
		}
		if err := s.Set(e, av.A, av.V); err != nil {
			return 0, err
		}
	}
	return e, nil
}

// Effect schedules f to run after the current writes, inside the same
// transaction.
func (s *ChangeScope) Effect(f func(*ChangeScope) error) error {
	_, err := s.Mutate(db.EffectInstruction{Effect: func(ctx *db.DbContext[db.Mut]) error {
		return f(s.derive(ctx, s.part))
	}})
	return err
}

// RunEffects runs queued effects in order until none are left. Effects may
// queue further effects.
func (s *ChangeScope) RunEffects() error {
	for len(s.state.effects) > 0 {
		next := s.state.effects[0]
		s.state.effects = s.state.effects[1:]
		if err := next(s.ctx); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaultPart runs body with a scope that creates entities in part.
func (s *ChangeScope) WithDefaultPart(part datom.Partition, body func(*ChangeScope) error) error {
	return body(s.derive(s.ctx, part))
}

// WithPartOf runs body with a scope that creates entities in the
// partition of e.
func (s *ChangeScope) WithPartOf(e datom.EID, body func(*ChangeScope) error) error {
	return s.WithDefaultPart(e.Partition(), body)
}

func (s *ChangeScope) derive(ctx *db.DbContext[db.Mut], part datom.Partition) *ChangeScope {
	return &ChangeScope{ctx: ctx, part: part, state: s.state}
}

func (s *ChangeScope) typeOf(e datom.EID) (EntityType, bool) {
	if t, ok := s.state.pending[e]; ok {
		return t, true
	}
	return s.state.registry.Type(e)
}

func hasValue(values []db.AttrValue, a datom.Attribute) bool {
	for _, av := range values {
		if av.A == a && av.V != nil {
			return true
		}
	}
	return false
}
