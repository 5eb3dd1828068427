package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/datoms/internal/compiler"
)

// Scenario defines a test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SchemaFile is a CUE schema path, relative to the scenario file.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Schema is an inline schema. Exactly one of Schema and SchemaFile is set.
	Schema *compiler.SchemaSpec `yaml:"schema,omitempty"`

	// Transactions run in order, each in its own kernel transaction.
	Transactions []Transaction `yaml:"transactions"`

	// Assertions validate the final database.
	Assertions []Assertion `yaml:"assertions"`

	// Editor is an optional fixed editor token. Defaults to "test-editor".
	Editor string `yaml:"editor,omitempty"`
}

// Transaction is a list of steps committed together.
type Transaction struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`

	// ExpectError is the error code the transaction must fail with, e.g.
	// UNIQUENESS_VIOLATION. Empty means it must commit.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step is one write. Exactly one field is set.
type Step struct {
	New    *NewStep    `yaml:"new,omitempty"`
	Upsert *UpsertStep `yaml:"upsert,omitempty"`
	Set    *WriteStep  `yaml:"set,omitempty"`
	Add    *WriteStep  `yaml:"add,omitempty"`
	Remove *WriteStep  `yaml:"remove,omitempty"`
	Clear  *WriteStep  `yaml:"clear,omitempty"`
	Delete *DeleteStep `yaml:"delete,omitempty"`
	Map    *MapStep    `yaml:"map,omitempty"`
}

// kinds lists the step kinds that are set.
func (s Step) kinds() []string {
	var out []string
	if s.New != nil {
		out = append(out, "new")
	}
	if s.Upsert != nil {
		out = append(out, "upsert")
	}
	if s.Set != nil {
		out = append(out, "set")
	}
	if s.Add != nil {
		out = append(out, "add")
	}
	if s.Remove != nil {
		out = append(out, "remove")
	}
	if s.Clear != nil {
		out = append(out, "clear")
	}
	if s.Delete != nil {
		out = append(out, "delete")
	}
	if s.Map != nil {
		out = append(out, "map")
	}
	return out
}

// Kind returns the name of the step, e.g. "set".
func (s Step) Kind() string {
	if k := s.kinds(); len(k) == 1 {
		return k[0]
	}
	return "invalid"
}

// NewStep creates an entity.
type NewStep struct {
	Type   string         `yaml:"type"`
	As     string         `yaml:"as,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`
}

// UpsertStep finds the entity holding Key or creates it.
type UpsertStep struct {
	Type   string         `yaml:"type"`
	As     string         `yaml:"as,omitempty"`
	Key    map[string]any `yaml:"key"`
	Values map[string]any `yaml:"values,omitempty"`
}

// WriteStep writes one attribute of one entity. Value is unused by clear;
// a null value in set retracts.
type WriteStep struct {
	Entity    string `yaml:"entity"`
	Attribute string `yaml:"attribute"`
	Value     any    `yaml:"value,omitempty"`
}

// DeleteStep deletes an entity with its cascade closure.
type DeleteStep struct {
	Entity string `yaml:"entity"`
}

// MapStep migrates every value of an attribute.
type MapStep struct {
	Attribute string `yaml:"attribute"`
	Using     string `yaml:"using"`
}

// Assertion validates the final database.
type Assertion struct {
	// Type specifies the assertion type:
	// - "value": single value of Attribute on Entity equals Expect
	// - "values": all values of Attribute on Entity equal Expect (a list)
	// - "exists", "not_exists": Entity is live or gone
	// - "count": EntityType has Count entities
	// - "lookup": the entity holding Value on Attribute is Expect (a label)
	// - "problems": Attribute holds Count problem values
	Type string `yaml:"type"`

	Entity     string `yaml:"entity,omitempty"`
	Attribute  string `yaml:"attribute,omitempty"`
	EntityType string `yaml:"entity_type,omitempty"`
	Value      any    `yaml:"value,omitempty"`
	Expect     any    `yaml:"expect,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertValue     = "value"
	AssertValues    = "values"
	AssertExists    = "exists"
	AssertNotExists = "not_exists"
	AssertCount     = "count"
	AssertLookup    = "lookup"
	AssertProblems  = "problems"
)

// LoadScenario reads and parses a scenario YAML file. A schema_file is
// resolved relative to the scenario's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving schema_file against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.SchemaFile == "" && s.Schema == nil:
		return fmt.Errorf("schema or schema_file is required")
	case s.SchemaFile != "" && s.Schema != nil:
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	case s.SchemaFile != "":
		if _, err := os.Stat(s.SchemaFile); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.SchemaFile)
		}
	}

	if len(s.Transactions) == 0 {
		return fmt.Errorf("transactions list is required and must be non-empty")
	}
	for i, txn := range s.Transactions {
		if len(txn.Steps) == 0 {
			return fmt.Errorf("transactions[%d]: steps list is required and must be non-empty", i)
		}
		for j, step := range txn.Steps {
			if err := validateStep(step); err != nil {
				return fmt.Errorf("transactions[%d].steps[%d]: %w", i, j, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	kinds := step.kinds()
	switch len(kinds) {
	case 0:
		return fmt.Errorf("step is empty")
	case 1:
	default:
		return fmt.Errorf("step sets %v, want exactly one", kinds)
	}

	switch {
	case step.New != nil:
		if step.New.Type == "" {
			return fmt.Errorf("new: type is required")
		}
	case step.Upsert != nil:
		if step.Upsert.Type == "" {
			return fmt.Errorf("upsert: type is required")
		}
		if len(step.Upsert.Key) != 1 {
			return fmt.Errorf("upsert: key must have exactly one attribute")
		}
	case step.Delete != nil:
		if step.Delete.Entity == "" {
			return fmt.Errorf("delete: entity is required")
		}
	case step.Map != nil:
		if step.Map.Attribute == "" || step.Map.Using == "" {
			return fmt.Errorf("map: attribute and using are required")
		}
	default:
		w := step.Set
		for _, candidate := range []*WriteStep{step.Add, step.Remove, step.Clear} {
			if candidate != nil {
				w = candidate
			}
		}
		if w.Entity == "" || w.Attribute == "" {
			return fmt.Errorf("%s: entity and attribute are required", kinds[0])
		}
		if (step.Add != nil || step.Remove != nil) && w.Value == nil {
			return fmt.Errorf("%s: value is required", kinds[0])
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValue, AssertValues:
		if a.Entity == "" || a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: entity and attribute are required for %s", index, a.Type)
		}
	case AssertExists, AssertNotExists:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for %s", index, a.Type)
		}
	case AssertCount:
		if a.EntityType == "" {
			return fmt.Errorf("assertions[%d]: entity_type is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertLookup:
		if a.Attribute == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: attribute and value are required for lookup", index)
		}
	case AssertProblems:
		if a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: attribute is required for problems", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
