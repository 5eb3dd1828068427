// Package datom provides the foundational types of the datom store.
//
// This package contains the fact model only. All other internal packages
// import datom; datom imports nothing internal.
//
// Key design constraints:
//   - An EID carries its partition in the high bits
//   - An Attribute carries its schema bits next to its own entity id, so its
//     cardinality and flags are known without a schema lookup
//   - Values are a sealed set of types with one canonical byte encoding
//   - NO float values (canonical encoding and hashing must be deterministic)
//   - NO null values: absence of a value is represented by absence of a datom
package datom
