package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockScenario = `
name: stock
schema:
  attributes:
    item/name: {id: 100, required: true}
    item/sku: {id: 101, unique: true}
  types:
    Item: {id: 200, attributes: [item/name, item/sku]}

transactions:
  - name: stock
    steps:
      - new: {type: Item, as: widget, values: {item/name: widget, item/sku: w-1}}
  - name: duplicate sku
    steps:
      - new: {type: Item, as: copy, values: {item/name: copy, item/sku: w-1}}
    expect_error: UNIQUENESS_VIOLATION

assertions:
  - {type: value, entity: widget, attribute: item/name, expect: widget}
  - {type: count, entity_type: Item, count: 1}
`

const brokenScenario = `
name: broken
schema:
  attributes:
    item/name: {id: 100}
  types:
    Item: {id: 200, attributes: [item/name]}

transactions:
  - name: stock
    steps:
      - new: {type: Item, as: widget, values: {item/name: widget}}

assertions:
  - {type: value, entity: widget, attribute: item/name, expect: gadget}
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "stock.yaml", stockScenario)

	output, err := runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ stock")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("harness scenarios not found")
	}

	output, err := runTestCmd(t, "text", dir)
	require.NoError(t, err, output)
	assert.Contains(t, output, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "stock.yaml", stockScenario)
	writeScenario(t, dir, "broken.yaml", brokenScenario)

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ broken")
	assert.Contains(t, output, `expected "gadget", got "widget"`)
	assert.Contains(t, output, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "broken.yaml", brokenScenario)

	output, err := runTestCmd(t, "json", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["failed"])
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "stock.yaml", stockScenario)
	writeScenario(t, dir, "broken.yaml", brokenScenario)

	output, err := runTestCmd(t, "text", dir, "--filter", "st*")
	require.NoError(t, err)
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, output, "broken")
}

func TestTestCommandNoScenarios(t *testing.T) {
	output, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommandPathNotFound(t *testing.T) {
	output, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "path not found")
}

func TestTestCommandGoldenFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "stock.yaml", stockScenario)
	goldenPath := filepath.Join(dir, "golden", "stock.golden")

	_, err := runTestCmd(t, "text", path, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	want := "scenario: stock\n" +
		"tx 3 stock\n" +
		"  + @widget db/type @Item\n" +
		"  + @widget item/name \"widget\"\n" +
		"  + @widget item/sku \"w-1\"\n" +
		"tx 4 duplicate sku\n" +
		"  ! UNIQUENESS_VIOLATION\n"
	assert.Equal(t, want, string(golden))

	t.Run("matching trace passes", func(t *testing.T) {
		output, err := runTestCmd(t, "text", path)
		require.NoError(t, err)
		assert.Contains(t, output, "✓ stock")
	})

	t.Run("changed trace fails", func(t *testing.T) {
		require.NoError(t, os.WriteFile(goldenPath, []byte("scenario: stock\n"), 0o644))

		output, err := runTestCmd(t, "text", path)
		require.Error(t, err)
		assert.Contains(t, output, "trace does not match golden file")
	})
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "people.golden"),
		goldenFilePath(filepath.Join("scenarios", "people.yaml")))
}
