package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace in the golden file format:
//
//	scenario: people
//	tx 3 create ada
//	  + @ada db/type @Person
//	  + @ada person/name "Ada"
//	tx 4 duplicate
//	  ! UNIQUENESS_VIOLATION
//
// Assertions are "+", retractions "-". A datom that keeps an older
// transaction (a migrated value) ends with "(tx N)".
func FormatTrace(name string, trace []TraceEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, event := range trace {
		fmt.Fprintf(&buf, "tx %d", event.TX)
		if event.Name != "" {
			fmt.Fprintf(&buf, " %s", event.Name)
		}
		buf.WriteByte('\n')

		if event.Error != "" {
			fmt.Fprintf(&buf, "  ! %s\n", event.Error)
			continue
		}
		for _, d := range event.Datoms {
			op := '+'
			if !d.Added {
				op = '-'
			}
			fmt.Fprintf(&buf, "  %c %s %s %s", op, d.E, d.A, d.V)
			if d.TX != 0 {
				fmt.Fprintf(&buf, " (tx %d)", d.TX)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The scenario's own assertions must also pass.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed: %v", scenario.Name, result.Errors)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))
	return nil
}
