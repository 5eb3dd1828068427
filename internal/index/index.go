package index

import (
	"github.com/benbjohnson/immutable"

	"github.com/roach88/datoms/internal/datom"
)

type (
	// valueSet maps canonical value keys to the stored datom.
	valueSet = *immutable.SortedMap[string, datom.Datom]
	// entityRecord maps attributes to their values for one entity.
	entityRecord = *immutable.SortedMap[datom.Attribute, valueSet]
	// entitySet is an ordered set of entity ids.
	entitySet = *immutable.SortedMap[datom.EID, struct{}]
	// refSet holds the datoms referencing one entity.
	refSet = *immutable.SortedMap[eaKey, datom.Datom]
)

// Index is a persistent, partitioned datom index. The zero value is not
// usable; start from New.
type Index struct {
	parts *immutable.SortedMap[datom.Partition, *partition]
}

type partition struct {
	last  int64 // highest sequence allocated or observed
	count int

	eavt *immutable.SortedMap[datom.EID, entityRecord]
	aevt *immutable.Map[datom.Attribute, entitySet]
	avet *immutable.Map[avKey, entitySet]
	vaet *immutable.Map[datom.EID, refSet]
}

// New returns an empty index.
func New() *Index {
	return &Index{parts: immutable.NewSortedMap[datom.Partition, *partition](partComparer{})}
}

func newPartition() *partition {
	return &partition{
		eavt: immutable.NewSortedMap[datom.EID, entityRecord](eidComparer{}),
		aevt: immutable.NewMap[datom.Attribute, entitySet](attrHasher{}),
		avet: immutable.NewMap[avKey, entitySet](avKeyHasher{}),
		vaet: immutable.NewMap[datom.EID, refSet](eidHasher{}),
	}
}

func newValueSet() valueSet {
	return immutable.NewSortedMap[string, datom.Datom](stringComparer{})
}

func newEntityRecord() entityRecord {
	return immutable.NewSortedMap[datom.Attribute, valueSet](attrComparer{})
}

func newEntitySet() entitySet {
	return immutable.NewSortedMap[datom.EID, struct{}](eidComparer{})
}

func newRefSet() refSet {
	return immutable.NewSortedMap[eaKey, datom.Datom](eaKeyComparer{})
}

func (idx *Index) partition(part datom.Partition) (*partition, bool) {
	return idx.parts.Get(part)
}

func (idx *Index) withPartition(part datom.Partition, p *partition) *Index {
	return &Index{parts: idx.parts.Set(part, p)}
}

// Add asserts (e, a, v) at tx and returns the new index with the datoms the
// write produced, in order. Asserting a value that is already present is a
// no-op and produces nothing. For cardinality-one attributes a different
// existing value is retracted first; the retraction carries tx.
func (idx *Index) Add(e datom.EID, a datom.Attribute, v datom.Value, tx datom.TX) (*Index, []datom.Datom) {
	p, ok := idx.partition(e.Partition())
	if !ok {
		p = newPartition()
	}

	key := datom.ValueKey(v)
	existing := p.values(e, a)
	if existing != nil {
		if _, ok := existing.Get(key); ok {
			return idx, nil
		}
	}

	var out []datom.Datom
	if a.Schema().Cardinality() == datom.One && existing != nil {
		itr := existing.Iterator()
		for !itr.Done() {
			_, old, _ := itr.Next()
			p = p.delete(old)
			old.Added = false
			old.TX = tx
			out = append(out, old)
		}
	}

	d := datom.Datom{E: e, A: a, V: v, TX: tx, Added: true}
	p = p.insert(d)
	return idx.withPartition(e.Partition(), p), append(out, d)
}

// Remove retracts (e, a, v). It returns the stored datom with Added=false
// and reports whether anything was removed.
func (idx *Index) Remove(e datom.EID, a datom.Attribute, v datom.Value) (*Index, datom.Datom, bool) {
	p, ok := idx.partition(e.Partition())
	if !ok {
		return idx, datom.Datom{}, false
	}
	vals := p.values(e, a)
	if vals == nil {
		return idx, datom.Datom{}, false
	}
	d, ok := vals.Get(datom.ValueKey(v))
	if !ok {
		return idx, datom.Datom{}, false
	}
	p = p.delete(d)
	d.Added = false
	return idx.withPartition(e.Partition(), p), d, true
}

// EntityExists reports whether e has at least one datom.
func (idx *Index) EntityExists(e datom.EID) bool {
	p, ok := idx.partition(e.Partition())
	if !ok {
		return false
	}
	_, ok = p.eavt.Get(e)
	return ok
}

// NewEID allocates a fresh entity id in part. Ids never collide with an
// entity already stored in the partition.
func (idx *Index) NewEID(part datom.Partition) (*Index, datom.EID) {
	p, ok := idx.partition(part)
	if !ok {
		p = newPartition()
	}
	out := *p
	out.last++
	return idx.withPartition(part, &out), datom.NewEID(part, out.last)
}

// SetPartition returns an index whose partition part is taken from other.
func (idx *Index) SetPartition(part datom.Partition, other *Index) *Index {
	p, ok := other.partition(part)
	if !ok {
		return &Index{parts: idx.parts.Delete(part)}
	}
	return idx.withPartition(part, p)
}

// MergePartitionsFrom returns an index whose listed partitions are taken
// from other. The rest stay as they are in idx.
func (idx *Index) MergePartitionsFrom(other *Index, parts ...datom.Partition) *Index {
	out := idx
	for _, part := range parts {
		out = out.SetPartition(part, other)
	}
	return out
}

// Partitions returns the partitions that hold data or allocated ids, in
// ascending order.
func (idx *Index) Partitions() []datom.Partition {
	out := make([]datom.Partition, 0, idx.parts.Len())
	itr := idx.parts.Iterator()
	for !itr.Done() {
		part, _, _ := itr.Next()
		out = append(out, part)
	}
	return out
}

// Len returns the number of stored datoms.
func (idx *Index) Len() int {
	n := 0
	itr := idx.parts.Iterator()
	for !itr.Done() {
		_, p, _ := itr.Next()
		n += p.count
	}
	return n
}

// Datoms returns every stored datom in index order.
func (idx *Index) Datoms() []datom.Datom {
	var out []datom.Datom
	itr := idx.parts.Iterator()
	for !itr.Done() {
		_, p, _ := itr.Next()
		eitr := p.eavt.Iterator()
		for !eitr.Done() {
			_, rec, _ := eitr.Next()
			out = appendRecord(out, rec)
		}
	}
	return out
}

func (p *partition) values(e datom.EID, a datom.Attribute) valueSet {
	rec, ok := p.eavt.Get(e)
	if !ok {
		return nil
	}
	vals, ok := rec.Get(a)
	if !ok {
		return nil
	}
	return vals
}

func (p *partition) insert(d datom.Datom) *partition {
	out := *p
	key := datom.ValueKey(d.V)

	rec, ok := p.eavt.Get(d.E)
	if !ok {
		rec = newEntityRecord()
	}
	vals, ok := rec.Get(d.A)
	if !ok {
		vals = newValueSet()
	}
	out.eavt = p.eavt.Set(d.E, rec.Set(d.A, vals.Set(key, d)))

	ents, ok := p.aevt.Get(d.A)
	if !ok {
		ents = newEntitySet()
	}
	out.aevt = p.aevt.Set(d.A, ents.Set(d.E, struct{}{}))

	if d.A.Schema().LookupByValue() {
		k := avKey{A: d.A, V: key}
		ents, ok := p.avet.Get(k)
		if !ok {
			ents = newEntitySet()
		}
		out.avet = p.avet.Set(k, ents.Set(d.E, struct{}{}))
	}

	if ref, ok := d.V.(datom.Ref); ok && d.A.Schema().IsRef() {
		refs, ok := p.vaet.Get(ref.EID())
		if !ok {
			refs = newRefSet()
		}
		out.vaet = p.vaet.Set(ref.EID(), refs.Set(eaKey{E: d.E, A: d.A}, d))
	}

	if seq := d.E.Seq(); seq > out.last {
		out.last = seq
	}
	out.count++
	return &out
}

func (p *partition) delete(d datom.Datom) *partition {
	out := *p
	key := datom.ValueKey(d.V)

	rec, _ := p.eavt.Get(d.E)
	vals, _ := rec.Get(d.A)
	vals = vals.Delete(key)
	entityKeepsAttr := vals.Len() > 0
	if entityKeepsAttr {
		rec = rec.Set(d.A, vals)
	} else {
		rec = rec.Delete(d.A)
	}
	if rec.Len() > 0 {
		out.eavt = p.eavt.Set(d.E, rec)
	} else {
		out.eavt = p.eavt.Delete(d.E)
	}

	if !entityKeepsAttr {
		ents, _ := p.aevt.Get(d.A)
		out.aevt = setOrDelete(p.aevt, d.A, ents.Delete(d.E))
	}

	if d.A.Schema().LookupByValue() {
		k := avKey{A: d.A, V: key}
		if ents, ok := p.avet.Get(k); ok {
			out.avet = setOrDelete(p.avet, k, ents.Delete(d.E))
		}
	}

	if ref, ok := d.V.(datom.Ref); ok && d.A.Schema().IsRef() {
		if refs, ok := p.vaet.Get(ref.EID()); ok {
			refs = refs.Delete(eaKey{E: d.E, A: d.A})
			if refs.Len() > 0 {
				out.vaet = p.vaet.Set(ref.EID(), refs)
			} else {
				out.vaet = p.vaet.Delete(ref.EID())
			}
		}
	}

	out.count--
	return &out
}

func setOrDelete[K any](m *immutable.Map[K, entitySet], k K, ents entitySet) *immutable.Map[K, entitySet] {
	if ents.Len() == 0 {
		return m.Delete(k)
	}
	return m.Set(k, ents)
}

func appendValues(out []datom.Datom, vals valueSet) []datom.Datom {
	itr := vals.Iterator()
	for !itr.Done() {
		_, d, _ := itr.Next()
		out = append(out, d)
	}
	return out
}

func appendRecord(out []datom.Datom, rec entityRecord) []datom.Datom {
	itr := rec.Iterator()
	for !itr.Done() {
		_, vals, _ := itr.Next()
		out = appendValues(out, vals)
	}
	return out
}
