package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestValidate(t *testing.T) {
	out := execute(t, "validate")
	assert.Contains(t, out, "claims:")
	assert.Contains(t, out, "onboarding:")
	assert.Contains(t, out, "support:")
	assert.Contains(t, out, "All flows are valid!")
}

func TestGraph(t *testing.T) {
	out := execute(t, "graph", "support")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "Followup")
}

func TestVersion(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "insurai version ")
}

func TestSessionLs_Empty(t *testing.T) {
	assert.Contains(t, execute(t, "session", "ls"), "No active sessions found.")
}
