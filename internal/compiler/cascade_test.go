package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCascades_NoCycles(t *testing.T) {
	spec := SchemaSpec{
		Attributes: map[string]AttributeSpec{
			"project/owner": {ID: 111, Ref: true, Required: true, Target: "Person"},
			"project/tasks": {ID: 112, Ref: true, Many: true, CascadeDelete: true, Target: "Task"},
		},
		Types: map[string]TypeSpec{
			"Person":  {ID: 200},
			"Project": {ID: 201, Attributes: []string{"project/owner", "project/tasks"}},
			"Task":    {ID: 202},
		},
	}

	warnings := AnalyzeCascades(spec)
	assert.Empty(t, warnings)
	assert.NotNil(t, warnings)
}

func TestAnalyzeCascades_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCascades(SchemaSpec{}))
}

func TestAnalyzeCascades_SelfLoop(t *testing.T) {
	spec := SchemaSpec{
		Attributes: map[string]AttributeSpec{
			"folder/children": {ID: 100, Ref: true, Many: true, CascadeDelete: true, Target: "Folder"},
		},
		Types: map[string]TypeSpec{
			"Folder": {ID: 200, Attributes: []string{"folder/children"}},
		},
	}

	warnings := AnalyzeCascades(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Folder", "Folder"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
}

func TestAnalyzeCascades_Cycle(t *testing.T) {
	spec := SchemaSpec{
		Attributes: map[string]AttributeSpec{
			"project/owner": {ID: 111, Ref: true, Required: true, Target: "Person"},
			"project/lead":  {ID: 113, Ref: true, CascadeDelete: true, Target: "Person"},
		},
		Types: map[string]TypeSpec{
			"Person":  {ID: 200},
			"Project": {ID: 201, Attributes: []string{"project/owner", "project/lead"}},
		},
	}

	warnings := AnalyzeCascades(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Person", "Project", "Person"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Person -> Project -> Person")
}

func TestAnalyzeCascades_IgnoresUntargetedRefs(t *testing.T) {
	spec := SchemaSpec{
		Attributes: map[string]AttributeSpec{
			"node/next": {ID: 100, Ref: true, CascadeDelete: true},
		},
		Types: map[string]TypeSpec{
			"Node": {ID: 200, Attributes: []string{"node/next"}},
		},
	}
	assert.Empty(t, AnalyzeCascades(spec))
}
