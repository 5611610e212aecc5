package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/internal/cli"
	"github.com/leapstack-labs/leapqdmr/internal/cli/config"
	"github.com/leapstack-labs/leapqdmr/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapqdmr")
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, expected := range []string{"generate", "answer", "corpus", "parse", "mutate", "filters", "repl", "runs"} {
		assert.Contains(t, out, expected)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	_, err := run(t, "corpus", "build", "--input", "break.csv")
	require.NoError(t, err)

	_, err = run(t, "generate", "--input", "break.csv", "--output", "candidates.csv", "--log-format", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "candidates.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Greater(t, len(lines), 1, "expected a header and at least one candidate")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			_, err := run(t, "completion", shell)
			assert.NoError(t, err)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "unknown-command")
	assert.Error(t, err)
}
