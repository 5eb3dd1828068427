package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// schemaDefinition constrains the shape of a schema file. Definitions are
// closed, so a misspelled flag is an error rather than silently false.
const schemaDefinition = `
#Attribute: {
	id:                 int & >=64
	ref?:               bool
	target?:            string
	many?:              bool
	indexed?:           bool
	unique?:            bool
	required?:          bool
	cascade_delete?:    bool
	cascade_delete_by?: bool
}

#Type: {
	id:          int & >=64
	attributes?: [...string]
}

#Schema: {
	attributes?: [string]: #Attribute
	types?: [string]: #Type
}
`

// CompileSchema checks v against the schema definition and compiles it.
// Uses the CUE SDK's Go API directly.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`types: Person: {id: 200}`)
//	schema, err := CompileSchema(v)
func CompileSchema(v cue.Value) (*Schema, error) {
	spec, err := DecodeSchema(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(spec); len(errs) > 0 {
		for i := range errs {
			errs[i].Line = lineOf(v, errs[i].path)
		}
		return nil, ValidationErrors(errs)
	}
	return build(spec), nil
}

// DecodeSchema checks v against the schema definition and decodes it
// without further validation.
func DecodeSchema(v cue.Value) (SchemaSpec, error) {
	var spec SchemaSpec
	if err := v.Err(); err != nil {
		return spec, formatCUEError(err)
	}

	def := v.Context().CompileString(schemaDefinition).LookupPath(cue.ParsePath("#Schema"))
	if err := def.Err(); err != nil {
		return spec, fmt.Errorf("schema definition: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return spec, formatCUEError(err)
	}
	if err := unified.Decode(&spec); err != nil {
		return spec, formatCUEError(err)
	}
	return spec, nil
}

// LoadFile compiles the CUE schema file at path.
func LoadFile(path string) (*Schema, error) {
	v, err := loadValue(path)
	if err != nil {
		return nil, err
	}
	return CompileSchema(v)
}

// LoadSpec decodes the CUE schema file at path without validating it.
func LoadSpec(path string) (SchemaSpec, cue.Value, error) {
	v, err := loadValue(path)
	if err != nil {
		return SchemaSpec{}, cue.Value{}, err
	}
	spec, err := DecodeSchema(v)
	return spec, v, err
}

func loadValue(path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("read schema: %w", err)
	}
	return cuecontext.New().CompileBytes(data, cue.Filename(path)), nil
}

// Locate fills in source lines for errs from the file they were found in.
func Locate(v cue.Value, errs []ValidationError) {
	for i := range errs {
		errs[i].Line = lineOf(v, errs[i].path)
	}
}

// lineOf returns the source line of the field at path, or 0.
func lineOf(v cue.Value, path []string) int {
	for n := len(path); n > 0; n-- {
		sels := make([]cue.Selector, n)
		for i, p := range path[:n] {
			sels[i] = cue.Str(p)
		}
		field := v.LookupPath(cue.MakePath(sels...))
		if field.Exists() && field.Pos().IsValid() {
			return field.Pos().Line()
		}
	}
	return 0
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
