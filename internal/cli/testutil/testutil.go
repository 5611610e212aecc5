// Package testutil provides fixtures and output capture for CLI tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
)

// BreakCSV is a small Break-format dataset. DROP_train_2 references a
// later step and is structurally invalid.
const BreakCSV = `question_id,question_text,decomposition,operators,split
DROP_train_1,How many touchdowns did Tom Brady throw?,return touchdowns ;return #1 that Tom Brady threw ;return number of #2,"['select', 'filter', 'aggregate']",train
DROP_train_2,broken,return touchdowns ;return #3 that Tom Brady threw ;return number of #2,"['select', 'filter', 'aggregate']",train
CLEVR_dev_3,Are there fewer green objects than cylinders?,"return objects ;return #1 that are green ;return #1 that are cylinders ;return number of #2 ;return number of #3 ;return which is lowest of #4 , #5","['select', 'filter', 'filter', 'aggregate', 'aggregate', 'superlative']",dev
`

// SetupTestProject creates a temporary working directory holding the
// Break fixture as break.csv and changes into it. The state database
// defaults to a path inside it.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	WriteFile(t, filepath.Join(tmpDir, "break.csv"), BreakCSV)
	t.Chdir(tmpDir)
	return tmpDir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestRenderer is a Renderer whose output is captured in buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a capturing renderer with the given mode and
// terminal state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a capturing markdown renderer.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a capturing JSON renderer.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns what was written to standard output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails the test if s contains ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
