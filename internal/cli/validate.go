package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Attributes int                        `json:"attributes"`
	Types      int                        `json:"types"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
	Warnings   []compiler.CascadeWarning  `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Validate a CUE schema",
		Long: `Validate a CUE schema file without opening a store.

Checks the file against the schema definition, then validates ids,
attribute flags, type declarations and reference targets. Every error is
reported with its source line. Cascade cycles between entity types are
reported as warnings.

Exit codes:
  0 - Schema is valid (warnings allowed)
  1 - Schema has validation errors
  2 - Command error (file not found, unreadable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("schema file not found: %s", path))
	}

	spec, v, err := compiler.LoadSpec(path)
	if err != nil {
		var cErr *compiler.CompileError
		if !errors.As(err, &cErr) {
			return commandError(formatter, ErrCodeLoadFailed, err.Error())
		}
		line := 0
		if cErr.Pos.IsValid() {
			line = cErr.Pos.Line()
		}
		return outputValidationErrors(formatter, ValidationResult{
			Errors: []compiler.ValidationError{{
				Field:   cErr.Field,
				Message: cErr.Message,
				Code:    ErrCodeGeneric,
				Line:    line,
			}},
		})
	}

	result := ValidationResult{
		Attributes: len(spec.Attributes),
		Types:      len(spec.Types),
		Errors:     compiler.Validate(spec),
		Warnings:   compiler.AnalyzeCascades(spec),
	}
	compiler.Locate(v, result.Errors)

	opts.log().Debug("schema validated",
		"path", path,
		"attributes", result.Attributes,
		"types", result.Types,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "%s: %s\n", warn.Level, warn.Message)
	}
	fmt.Fprintf(w, "✓ Schema valid: %d attribute(s), %d type(s)\n", result.Attributes, result.Types)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
