// Package config provides configuration management for the leapqdmr CLI.
//
// The shared configuration types live in internal/config and are
// re-exported here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapqdmr/internal/config"
)

// Config is an alias for the shared pipeline configuration.
type Config = sharedcfg.Config

// FiltersConfig is an alias for the shared filter configuration.
type FiltersConfig = sharedcfg.FiltersConfig

// GenerateConfig is an alias for the shared generation configuration.
type GenerateConfig = sharedcfg.GenerateConfig

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultOutput    = sharedcfg.DefaultOutput
	EnvPrefix        = "LEAPQDMR_"
)

// flagKeys maps command-line flag names to config keys. Flags not listed
// are not configuration.
var flagKeys = map[string]string{
	"state":           "state_path",
	"dataset":         "dataset",
	"workers":         "workers",
	"format":          "output",
	"log-format":      "log_format",
	"verbose":         "verbose",
	"metrics-file":    "metrics_file",
	"disable":         "filters.disabled",
	"threshold":       "filters.operator_threshold",
	"corpus":          "filters.corpus",
	"limit":           "generate.append_boolean_limit",
	"seed":            "generate.seed",
	"numeric-answers": "generate.numeric_answers",
	"augmented":       "generate.augmented",
}
