// Package harness runs YAML scenarios against a fresh datom store.
//
// A scenario declares a schema, a list of transactions, and assertions on
// the final database. Every transaction is executed through the kernel, so
// scenarios exercise the real write path: uniqueness checks, cascading
// deletes, required attributes and migrations.
//
// # Scenario Format
//
//	name: projects
//	description: "Deleting an owner deletes their projects"
//	schema_file: ../schemas/projects.cue   # or an inline schema:
//	schema:
//	  attributes:
//	    person/name: {id: 100, required: true}
//	  types:
//	    Person: {id: 200, attributes: [person/name]}
//	transactions:
//	  - name: create ada
//	    steps:
//	      - new: {type: Person, as: ada, values: {person/name: Ada}}
//	  - name: duplicate
//	    steps:
//	      - new: {type: Person, values: {person/name: Ada}}
//	    expect_error: UNIQUENESS_VIOLATION
//	assertions:
//	  - {type: value, entity: ada, attribute: person/name, expect: Ada}
//
// Entities are named by the label given in `as`. Values of reference
// attributes are labels too.
//
// # Steps
//
//   - new: create an entity of a type
//   - upsert: find by a unique key or create
//   - set, add, remove, clear: write one attribute
//   - delete: delete an entity and its cascade closure
//   - map: rewrite every value of an attribute with a named conversion
//
// # Assertion Types
//
//   - value: single value of an attribute (null expects no value)
//   - values: every value of an attribute
//   - exists, not_exists: entity liveness
//   - count: number of entities of a type
//   - lookup: entity holding a value, by label
//   - problems: number of values of an attribute that failed migration
//
// # Deterministic Testing
//
// Scenarios run with a resettable transaction clock and a fixed editor
// token, so the same scenario always produces the same trace. The trace
// records the novelty of every transaction and can be compared against a
// golden file with RunWithGolden.
package harness
