package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParsePositionalWorkflowPath(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := Parse([]string{"workflow.json"}, &out)
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "workflow.json", config.WorkflowPath)
	assert.Equal(t, "fail-fast", config.Policy)
}

func TestParseFlagOverridesPositional(t *testing.T) {
	var out bytes.Buffer
	config, _, err := Parse([]string{"-workflow", "a.json", "b.json"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a.json", config.WorkflowPath)
}

func TestParseRejectsInvalidLogFormat(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-log-format", "yaml", "workflow.json"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseRejectsInvalidPolicy(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-policy", "retry", "workflow.json"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseIsolatePolicy(t *testing.T) {
	var out bytes.Buffer
	config, _, err := Parse([]string{"-policy", "isolate", "-workers", "4", "workflow.json"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "isolate", config.Policy)
	assert.Equal(t, 4, config.Workers)
}
