package config

import (
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
)

// Default configuration values.
const (
	DefaultStateFile          = ".leapqdmr/state.db"
	DefaultWorkers            = 1
	DefaultOutput             = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat          = "text"
	DefaultAppendBooleanLimit = -1
	DefaultSeed               = engine.DefaultSeed
)

// Defaults returns the default values keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"state_path":                    DefaultStateFile,
		"dataset":                       "",
		"workers":                       DefaultWorkers,
		"output":                        DefaultOutput,
		"log_format":                    DefaultLogFormat,
		"verbose":                       false,
		"filters.operator_threshold":    filter.DefaultOperatorThreshold,
		"generate.append_boolean_limit": DefaultAppendBooleanLimit,
		"generate.seed":                 DefaultSeed,
	}
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		StatePath: DefaultStateFile,
		Workers:   DefaultWorkers,
		Output:    DefaultOutput,
		LogFormat: DefaultLogFormat,
		Filters: FiltersConfig{
			OperatorThreshold: filter.DefaultOperatorThreshold,
		},
		Generate: GenerateConfig{
			AppendBooleanLimit: DefaultAppendBooleanLimit,
			Seed:               DefaultSeed,
		},
	}
}
