package changescope

import (
	"sort"
	"sync"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// AttributeDef names an attribute.
type AttributeDef struct {
	Ident string
	Attr  datom.Attribute
}

// RetractHook runs for an entity of the type while its cascade closure is
// still intact. It may return a callback that runs after the closure is
// retracted; the callback must not write to any entity of the closure.
type RetractHook func(q db.Q, e datom.EID) (func(*ChangeScope) error, error)

// EntityType declares a kind of entity: its schema entity id, ident and
// attributes. Instances carry db/type pointing at E.
type EntityType struct {
	E          datom.EID
	Ident      string
	Attributes []AttributeDef
	OnRetract  RetractHook
}

// Attribute returns the attribute declared under ident.
func (t *EntityType) Attribute(ident string) (datom.Attribute, bool) {
	for _, def := range t.Attributes {
		if def.Ident == ident {
			return def.Attr, true
		}
	}
	return 0, false
}

// Required returns the attributes instances must always have.
func (t *EntityType) Required() []AttributeDef {
	var out []AttributeDef
	for _, def := range t.Attributes {
		if def.Attr.Schema().Required() {
			out = append(out, def)
		}
	}
	return out
}

func (t *EntityType) validate() error {
	if t.E == 0 || t.E.Partition() != datom.SchemaPart {
		return datom.NewConfigurationError("entity type %q needs an id in the schema partition, got %s", t.Ident, t.E)
	}
	if t.Ident == "" {
		return datom.NewConfigurationError("entity type %s has no ident", t.E)
	}
	seen := make(map[string]bool, len(t.Attributes))
	for _, def := range t.Attributes {
		if def.Ident == "" {
			return datom.NewConfigurationError("entity type %q declares an attribute without ident", t.Ident)
		}
		if seen[def.Ident] {
			return datom.NewConfigurationError("entity type %q declares %q twice", t.Ident, def.Ident)
		}
		seen[def.Ident] = true
		if _, err := datom.NewAttribute(def.Attr.EID(), def.Attr.Schema()); err != nil {
			return err
		}
	}
	return nil
}

// Registry holds the entity types known to a store.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byType  map[datom.EID]EntityType
	byIdent map[string]datom.EID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[datom.EID]EntityType),
		byIdent: make(map[string]datom.EID),
	}
}

// Add records t. Adding the same type again is a no-op; reusing an ident
// for a different id is a configuration error.
func (r *Registry) Add(t EntityType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byIdent[t.Ident]; ok && e != t.E {
		return datom.NewConfigurationError("entity type %q is already registered as %s", t.Ident, e)
	}
	r.byType[t.E] = t
	r.byIdent[t.Ident] = t.E
	return nil
}

// Type returns the type registered under e.
func (r *Registry) Type(e datom.EID) (EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byType[e]
	return t, ok
}

// ByIdent returns the type registered under ident.
func (r *Registry) ByIdent(ident string) (EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byIdent[ident]
	if !ok {
		return EntityType{}, false
	}
	return r.byType[e], true
}

// Types returns every registered type ordered by id.
func (r *Registry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.byType))
	for _, t := range r.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].E < out[j].E })
	return out
}
