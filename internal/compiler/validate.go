package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/datoms/internal/datom"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidSchema      = "E100" // attribute flags do not form a valid schema
	ErrReservedID         = "E101" // id below the first user sequence
	ErrDuplicateID        = "E102" // id used twice
	ErrUnknownAttribute   = "E103" // type lists an undeclared attribute
	ErrEmptyIdent         = "E104" // blank attribute or type name
	ErrDuplicateAttribute = "E105" // type lists an attribute twice
	ErrIDOutOfRange       = "E106" // id does not fit in the sequence bits
	ErrUnknownTarget      = "E107" // ref target is not a declared type
	ErrTargetWithoutRef   = "E108" // target on a non-reference attribute
)

const maxSeq = int64(1)<<datom.PartitionShift - 1

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`

	path []string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one declaration.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func newValidationError(code, message string, path ...string) ValidationError {
	return ValidationError{
		Field:   strings.Join(path, "."),
		Message: message,
		Code:    code,
		path:    path,
	}
}

// Validate checks spec and returns all errors found (does not fail-fast).
func Validate(spec SchemaSpec) []ValidationError {
	var errs []ValidationError
	owner := make(map[int64]string)

	checkID := func(id int64, path ...string) {
		name := strings.Join(path, ".")
		switch {
		case id < datom.FirstUserAttributeSeq:
			errs = append(errs, newValidationError(ErrReservedID,
				fmt.Sprintf("id %d is reserved, use %d or above", id, datom.FirstUserAttributeSeq), append(path, "id")...))
		case id > maxSeq:
			errs = append(errs, newValidationError(ErrIDOutOfRange,
				fmt.Sprintf("id %d exceeds %d", id, maxSeq), append(path, "id")...))
		default:
			if prev, ok := owner[id]; ok {
				errs = append(errs, newValidationError(ErrDuplicateID,
					fmt.Sprintf("id %d is already used by %s", id, prev), append(path, "id")...))
				return
			}
			owner[id] = name
		}
	}

	for _, name := range spec.attributeNames() {
		a := spec.Attributes[name]
		if strings.TrimSpace(name) == "" {
			errs = append(errs, newValidationError(ErrEmptyIdent, "attribute name is empty", "attributes", name))
			continue
		}
		checkID(a.ID, "attributes", name)

		if _, err := datom.NewSchema(a.Options()); err != nil {
			msg := err.Error()
			var de *datom.Error
			if errors.As(err, &de) {
				msg = de.Message
			}
			errs = append(errs, newValidationError(ErrInvalidSchema, msg, "attributes", name))
		}
		if a.Target != "" {
			if !a.Ref {
				errs = append(errs, newValidationError(ErrTargetWithoutRef,
					"target is only allowed on reference attributes", "attributes", name, "target"))
			} else if _, ok := spec.Types[a.Target]; !ok {
				errs = append(errs, newValidationError(ErrUnknownTarget,
					fmt.Sprintf("target type %q is not declared", a.Target), "attributes", name, "target"))
			}
		}
	}

	for _, name := range spec.typeNames() {
		t := spec.Types[name]
		if strings.TrimSpace(name) == "" {
			errs = append(errs, newValidationError(ErrEmptyIdent, "type name is empty", "types", name))
			continue
		}
		checkID(t.ID, "types", name)

		seen := make(map[string]bool, len(t.Attributes))
		for _, ident := range t.Attributes {
			if seen[ident] {
				errs = append(errs, newValidationError(ErrDuplicateAttribute,
					fmt.Sprintf("attribute %q is listed twice", ident), "types", name, "attributes"))
				continue
			}
			seen[ident] = true
			if _, ok := spec.Attributes[ident]; !ok {
				errs = append(errs, newValidationError(ErrUnknownAttribute,
					fmt.Sprintf("attribute %q is not declared", ident), "types", name, "attributes"))
			}
		}
	}

	return errs
}
