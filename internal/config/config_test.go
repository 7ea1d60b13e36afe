package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{
		"EVIDENTIA_ADDR", "EVIDENTIA_MAX_ITERATIONS", "EVIDENTIA_MAX_TOOL_PARALLELISM",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, 12, s.Agent.MaxIterations)
	assert.Equal(t, 4, s.Agent.MaxToolParallelism)
}

func TestFromEnvRejectsZeroIterations(t *testing.T) {
	t.Setenv("EVIDENTIA_MAX_ITERATIONS", "0")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadAppliesYAMLOverlayOnTopOfEnvDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/evidentia.yaml"
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  max_iterations: 20\nanthropic:\n  model: claude-custom-model\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, s.Agent.MaxIterations)
	assert.Equal(t, "claude-custom-model", s.Anthropic.Model)
	assert.Equal(t, 4, s.Agent.MaxToolParallelism) // untouched field keeps its env default
}

func TestLoadWithEmptyPathSkipsOverlay(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, s.Agent.MaxIterations)
}

func TestLoadRejectsMissingOverlayFile(t *testing.T) {
	_, err := Load("/nonexistent/evidentia.yaml")
	assert.Error(t, err)
}
