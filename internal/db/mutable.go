package db

import (
	"fmt"
	"log/slog"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
	"github.com/roach88/datoms/internal/querycache"
)

// MutableDb is the write session of one transaction. It is not safe for
// concurrent use; the kernel serializes transactions.
type MutableDb struct {
	index   *index.Index
	cache   *querycache.Store
	tx      datom.TX
	editor  string
	editors EditorSource
}

// NewMutableDb starts a session on top of from, stamping asserts with tx.
// A nil editors uses UUIDv7 session tokens.
func NewMutableDb(from *DB, tx datom.TX, editors EditorSource) *MutableDb {
	if editors == nil {
		editors = UUIDv7Editors{}
	}
	return &MutableDb{
		index:   from.index,
		cache:   from.cache.Fork(),
		tx:      tx,
		editor:  editors.Generate(),
		editors: editors,
	}
}

// Mutate folds exp.Ops over the index. Every op is validated against the
// index as it stands after the previous ops; the first failure discards the
// whole expansion. The query cache is invalidated with the novelty.
// Effects are not run here.
func (m *MutableDb) Mutate(exp Expansion) (datom.Novelty, error) {
	idx := m.index
	var novelty datom.Novelty

	for _, op := range exp.Ops {
		switch op := op.(type) {
		case Assert:
			if err := checkAssert(idx, op.E, op.A, op.V); err != nil {
				return nil, err
			}
			next, out := idx.Add(op.E, op.A, op.V, m.tx)
			idx = next
			novelty = append(novelty, out...)
		case AssertWithTX:
			if err := checkAssert(idx, op.E, op.A, op.V); err != nil {
				return nil, err
			}
			next, out := idx.Add(op.E, op.A, op.V, op.TX)
			idx = next
			for _, d := range out {
				if !d.Added {
					d.TX = m.tx
				}
				novelty = append(novelty, d)
			}
		case Retract:
			if err := datom.CheckValue(op.V); err != nil {
				return nil, err
			}
			next, d, ok := idx.Remove(op.E, op.A, op.V)
			if !ok {
				continue
			}
			idx = next
			d.TX = m.tx
			novelty = append(novelty, d)
		default:
			return nil, fmt.Errorf("unhandled op type %T", op)
		}
	}

	m.index = idx
	m.cache.Invalidate(novelty)
	if len(exp.Ops) > 0 {
		slog.Debug("mutation applied",
			"tx", m.tx,
			"ops", len(exp.Ops),
			"novelty", len(novelty),
		)
	}
	return novelty, nil
}

// checkAssert validates one assert against idx.
func checkAssert(idx *index.Index, e datom.EID, a datom.Attribute, v datom.Value) error {
	if v == nil {
		return datom.NewConfigurationError("assert of %s on %s has no value: retract instead", a, e)
	}
	if err := datom.CheckValue(v); err != nil {
		return err
	}
	if e == 0 {
		return datom.NewConfigurationError("assert of %s with zero entity id", a)
	}
	if !datom.IsBuiltin(a.EID()) && !idx.EntityExists(a.EID()) {
		return datom.NewConfigurationError("attribute %s is not registered", a)
	}

	ref, isRef := v.(datom.Ref)
	switch {
	case a.Schema().IsRef() && isRef:
		if ref.EID() != e && !idx.EntityExists(ref.EID()) {
			return &datom.Error{
				Code:      datom.ErrCodeEntityNotFound,
				Message:   fmt.Sprintf("reference to missing entity %s", ref.EID()),
				Entity:    e,
				Attribute: a,
			}
		}
	case a.Schema().IsRef() && !datom.IsProblem(v):
		return datom.NewConfigurationError("attribute %s takes references, got %s", a, datom.FormatValue(v))
	case !a.Schema().IsRef() && isRef:
		return datom.NewConfigurationError("attribute %s does not take references", a)
	}
	return nil
}

// QueryIndex evaluates q against the uncommitted index.
func (m *MutableDb) QueryIndex(q index.Query) []datom.Datom {
	return m.index.Query(q)
}

// CachedQuery memoizes cq in the session's cache.
func (m *MutableDb) CachedQuery(cq CachedQuery) (CachedResult, error) {
	return performCached(m.cache, m, cq)
}

// AssertEntityExists fails when e has no datoms.
func (m *MutableDb) AssertEntityExists(e datom.EID) error {
	if !m.index.EntityExists(e) {
		return datom.NewEntityNotFoundError(e)
	}
	return nil
}

// Original returns m.
func (m *MutableDb) Original() Q { return m }

// NewEID allocates a fresh entity id in part.
func (m *MutableDb) NewEID(part datom.Partition) datom.EID {
	var e datom.EID
	m.index, e = m.index.NewEID(part)
	return e
}

// TX returns the running transaction id.
func (m *MutableDb) TX() datom.TX { return m.tx }

// Editor returns the current session token.
func (m *MutableDb) Editor() string { return m.editor }

// Index returns the uncommitted index.
func (m *MutableDb) Index() *index.Index { return m.index }

// Snapshot freezes the current state into a DB and starts a new session.
// Later mutations never affect the returned value.
func (m *MutableDb) Snapshot() *DB {
	out := &DB{
		index: m.index,
		cache: m.cache.Fork(),
		tx:    m.tx,
	}
	m.editor = m.editors.Generate()
	return out
}

// Rollback discards everything since db and starts a new session.
func (m *MutableDb) Rollback(db *DB) {
	m.index = db.index
	m.cache.Reset(db.cache.Load())
	m.editor = m.editors.Generate()
}
