package mgrcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub writes an executable shell script to a temp dir and returns its
// path. Tests use stubs instead of a real management binary.
func writeStub(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mgr")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755)
	require.NoError(t, err)
	return path
}

func TestRunCapturesStreams(t *testing.T) {
	stub := writeStub(t, `echo "out line"; echo "err line" >&2`)
	runner := NewRunner(stub)

	res := runner.Run("anything")
	require.True(t, res.Ok())
	assert.Equal(t, "out line\n", res.Stdout)
	assert.Equal(t, "err line\n", res.Stderr)
	assert.NoError(t, res.Err)
}

func TestRunNonZeroExit(t *testing.T) {
	stub := writeStub(t, `echo "link down" >&2; exit 1`)
	runner := NewRunner(stub)

	res := runner.Run("service", "mount", "lustre0-OST000a")
	assert.False(t, res.Ok())
	assert.Error(t, res.Err)
	assert.Equal(t, "link down\n", res.Stderr)
}

func TestRunPassesArguments(t *testing.T) {
	stub := writeStub(t, `echo "$@"`)
	runner := NewRunner(stub)

	res := runner.Run("host", "start", "server17")
	require.True(t, res.Ok())
	assert.Equal(t, "host start server17\n", res.Stdout)
}

func TestRunMissingBinary(t *testing.T) {
	runner := NewRunner(filepath.Join(t.TempDir(), "does-not-exist"))

	res := runner.Run("simple_config")
	assert.False(t, res.Ok())
	assert.Error(t, res.Err)
}

func TestEscapeNewlines(t *testing.T) {
	assert.Equal(t, "a\\nb\\n", EscapeNewlines("a\nb\n"))
	assert.Equal(t, "plain", EscapeNewlines("plain"))
	assert.Equal(t, "", EscapeNewlines(""))
}

func TestEscapedOutputs(t *testing.T) {
	stub := writeStub(t, `printf "one\ntwo\n"; printf "three\nfour\n" >&2`)
	runner := NewRunner(stub)

	res := runner.Run()
	require.True(t, res.Ok())
	assert.Equal(t, "one\\ntwo\\n", res.EscapedStdout())
	assert.Equal(t, "three\\nfour\\n", res.EscapedStderr())
}
