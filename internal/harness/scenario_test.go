package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineSchema = `
schema:
  attributes:
    person/name: {id: 100, required: true}
  types:
    Person: {id: 200, attributes: [person/name]}
`

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "people.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "people", scenario.Name)
	assert.Equal(t, filepath.Join("testdata", "schemas", "projects.cue"), scenario.SchemaFile,
		"schema_file resolves against the scenario directory")
	require.Len(t, scenario.Transactions, 4)
	assert.Equal(t, "UNIQUENESS_VIOLATION", scenario.Transactions[2].ExpectError)

	first := scenario.Transactions[0].Steps[0]
	require.NotNil(t, first.New)
	assert.Equal(t, "new", first.Kind())
	assert.Equal(t, "Person", first.New.Type)
	assert.Equal(t, "ada", first.New.As)
	assert.Equal(t, "Ada", first.New.Values["person/name"])

	tags := scenario.Transactions[3].Steps[0].Set
	require.NotNil(t, tags)
	assert.Equal(t, []any{"math", "poetry"}, tags.Value)
	assert.Len(t, scenario.Assertions, 4)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := `
name: s
description: d
schema_file: missing.cue
transactions:
  - steps:
      - delete: {entity: x}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}}]}]\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}}]}]\n",
			want:    "description is required",
		},
		{
			name:    "missing schema",
			content: "name: n\ndescription: d\ntransactions: [{steps: [{delete: {entity: x}}]}]\n",
			want:    "schema or schema_file is required",
		},
		{
			name:    "no transactions",
			content: "name: n\ndescription: d\n" + inlineSchema,
			want:    "transactions list is required",
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{}]}]\n",
			want:    "step is empty",
		},
		{
			name:    "two kinds in one step",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}, clear: {entity: x, attribute: a}}]}]\n",
			want:    "want exactly one",
		},
		{
			name:    "add without value",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{add: {entity: x, attribute: a}}]}]\n",
			want:    "value is required",
		},
		{
			name:    "upsert with two keys",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{upsert: {type: T, key: {a: 1, b: 2}}}]}]\n",
			want:    "exactly one attribute",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}}]}]\nassertions: [{type: trace_contains}]\n",
			want:    "unknown assertion type",
		},
		{
			name:    "count without type",
			content: "name: n\ndescription: d\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}}]}]\nassertions: [{type: count, count: 1}]\n",
			want:    "entity_type is required",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nflow_token: x\n" + inlineSchema + "transactions: [{steps: [{delete: {entity: x}}]}]\n",
			want:    "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_InlineSchema(t *testing.T) {
	content := "name: n\ndescription: d\n" + inlineSchema + `
transactions:
  - steps:
      - new: {type: Person, as: ada, values: {person/name: Ada}}
`
	scenario, err := ParseScenario([]byte(content), "")
	require.NoError(t, err)
	require.NotNil(t, scenario.Schema)
	assert.Equal(t, int64(100), scenario.Schema.Attributes["person/name"].ID)
	assert.True(t, scenario.Schema.Attributes["person/name"].Required)
}

func TestStep_Kind(t *testing.T) {
	assert.Equal(t, "map", Step{Map: &MapStep{}}.Kind())
	assert.Equal(t, "invalid", Step{}.Kind())
	assert.Equal(t, "invalid", Step{Set: &WriteStep{}, Add: &WriteStep{}}.Kind())
}
