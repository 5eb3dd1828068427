package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/datoms/internal/harness"
)

// InspectResult is the final state of a scenario's store.
type InspectResult struct {
	Scenario string               `json:"scenario"`
	TX       int64                `json:"tx"`
	Datoms   []harness.TraceDatom `json:"datoms"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <scenario.yaml>",
		Short: "Dump the datoms a scenario leaves behind",
		Long: `Run a scenario and print every datom of the final database that
belongs to an entity of a schema type, with the transaction that wrote it.

Entities are shown by their scenario labels.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return commandError(formatter, ErrCodeLoadFailed, err.Error())
	}

	h, run, err := harness.Execute(scenario, harness.WithLogger(opts.log()))
	if err != nil {
		return commandError(formatter, ErrCodeRunFailed, err.Error())
	}
	defer h.Close()

	result := InspectResult{
		Scenario: scenario.Name,
		TX:       h.DB().TX().Seq(),
		Datoms:   h.Render(h.Datoms()),
		Errors:   run.Errors,
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "scenario: %s (tx %d)\n", result.Scenario, result.TX)
	for _, d := range result.Datoms {
		fmt.Fprintf(w, "  %s %s %s (tx %d)\n", d.E, d.A, d.V, d.TX)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n%d expectation(s) failed:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}
