package datom

import "fmt"

// EID identifies an entity. The high bits hold the partition the id was
// allocated in, the low PartitionShift bits hold a per-partition sequence.
type EID int64

// Partition is a namespace for entity-id allocation.
type Partition uint32

// PartitionShift is the bit offset of the partition inside an EID.
const PartitionShift = 40

const seqMask = (int64(1) << PartitionShift) - 1

// Well-known partitions.
const (
	// SchemaPart holds attribute and entity-type entities.
	SchemaPart Partition = 0
	// CommonPart holds entities shared by every user partition.
	CommonPart Partition = 1
	// TxPart holds transaction ids.
	TxPart Partition = 2
	// DefaultPart is where new entities go unless a scope says otherwise.
	DefaultPart Partition = 3
)

// TX identifies a transaction. It is an EID in TxPart.
type TX = EID

// NewEID builds an entity id from a partition and a sequence number.
func NewEID(part Partition, seq int64) EID {
	return EID(int64(part)<<PartitionShift | (seq & seqMask))
}

// NewTX returns the transaction id for the given logical clock value.
func NewTX(seq int64) TX {
	return NewEID(TxPart, seq)
}

// Partition returns the partition the id was allocated in.
func (e EID) Partition() Partition {
	return Partition(int64(e) >> PartitionShift)
}

// Seq returns the per-partition sequence part of the id.
func (e EID) Seq() int64 {
	return int64(e) & seqMask
}

func (e EID) String() string {
	return fmt.Sprintf("%d:%d", e.Partition(), e.Seq())
}
