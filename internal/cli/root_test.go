package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intconfig "github.com/leapstack-labs/leapqdmr/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		cfg := intconfig.Default()
		cfg.LogFormat = "json"
		buf := &bytes.Buffer{}
		NewLogger(buf, cfg).Info("generation complete", "records", 3)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "generation complete", rec["msg"])
		assert.InDelta(t, 3, rec["records"], 0)
	})

	t.Run("text without terminal has no color", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewLogger(buf, intconfig.Default()).Warn("skipping record", "record", "DROP_1")
		assert.Contains(t, buf.String(), "skipping record")
		assert.Contains(t, buf.String(), "record=DROP_1")
		assert.NotContains(t, buf.String(), "\x1b[")
	})

	t.Run("debug only when verbose", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewLogger(buf, intconfig.Default()).Debug("hidden")
		assert.Empty(t, buf.String())

		cfg := intconfig.Default()
		cfg.Verbose = true
		NewLogger(buf, cfg).Debug("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"generate", "answer", "corpus", "parse", "mutate", "filters", "repl", "runs", "version", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "state", "dataset", "workers", "format", "log-format", "metrics-file", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}
