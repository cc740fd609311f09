package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: join
description: "One participant joins"
flow:
  - action: connect
    connection: c1
    participant: alice
assertions:
  - type: session_count
    count: 1
`

const failingScenario = `
name: wrong_count
description: "Asserts a body count that does not hold"
flow:
  - action: tick
assertions:
  - type: body_count
    count: 3
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestScenarioCommand_MissingArgs(t *testing.T) {
	_, err := executeCommand(t, "scenario")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestScenarioCommand_NonExistentPath(t *testing.T) {
	_, err := executeCommand(t, "scenario", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestScenarioCommand_EmptyDir(t *testing.T) {
	out, err := executeCommand(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestScenarioCommand_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"join.yaml": passingScenario})

	out, err := executeCommand(t, "scenario", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ join")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommand_Failure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"join.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	out, err := executeCommand(t, "--format", "json", "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "join", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[1].Errors)
}

func TestScenarioCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"join.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	out, err := executeCommand(t, "scenario", dir, "--filter", "jo*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "wrong_count")
}

func TestScenarioCommand_InvalidFilter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"join.yaml": passingScenario})

	_, err := executeCommand(t, "scenario", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommand_UpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"join.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "join.golden")

	out, err := executeCommand(t, "scenario", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "join"`)
	assert.Contains(t, string(golden), `"connection": "c1"`)

	_, err = executeCommand(t, "scenario", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0o644))
	out, err = executeCommand(t, "scenario", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioCommand_SingleFileWithGoldenDir(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"join.yaml": passingScenario})
	goldenDir := filepath.Join(t.TempDir(), "traces")

	_, err := executeCommand(t, "scenario", filepath.Join(dir, "join.yaml"), "--golden-dir", goldenDir, "--update")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(goldenDir, "join.golden"))
	assert.NoError(t, err)
}
