// Package config provides shared configuration types for leapqdmr.
// This package is decoupled from CLI concerns and can be used by any tool
// that needs to load pipeline configuration.
package config

import (
	"github.com/leapstack-labs/leapqdmr/internal/filter"
)

// Config holds the pipeline configuration.
type Config struct {
	StatePath   string         `koanf:"state_path" yaml:"state_path"`
	Dataset     string         `koanf:"dataset" yaml:"dataset"`
	Workers     int            `koanf:"workers" yaml:"workers"`
	Output      string         `koanf:"output" yaml:"output"`
	LogFormat   string         `koanf:"log_format" yaml:"log_format"`
	Verbose     bool           `koanf:"verbose" yaml:"verbose"`
	MetricsFile string         `koanf:"metrics_file" yaml:"metrics_file"`
	Filters     FiltersConfig  `koanf:"filters" yaml:"filters"`
	Generate    GenerateConfig `koanf:"generate" yaml:"generate"`
}

// FiltersConfig selects and tunes the candidate filters.
type FiltersConfig struct {
	Disabled []string `koanf:"disabled" yaml:"disabled"`
	// OperatorThreshold is the minimum percentage of corpus examples a
	// step signature must occur in.
	OperatorThreshold float64 `koanf:"operator_threshold" yaml:"operator_threshold"`
	// Corpus is a Break CSV to build the corpus from on the fly. When
	// empty, the corpus saved in the state store is used.
	Corpus string `koanf:"corpus" yaml:"corpus"`
}

// GenerateConfig tunes candidate generation.
type GenerateConfig struct {
	// AppendBooleanLimit caps appended-boolean candidates per record;
	// negative means no cap.
	AppendBooleanLimit int    `koanf:"append_boolean_limit" yaml:"append_boolean_limit"`
	Seed               uint64 `koanf:"seed" yaml:"seed"`
	// NumericAnswers is a JSON file of question id to number.
	NumericAnswers string `koanf:"numeric_answers" yaml:"numeric_answers"`
	// Augmented is where generated questions are written in Break format.
	Augmented string `koanf:"augmented" yaml:"augmented"`
}

// FilterConfig builds the filter configuration.
func (c *Config) FilterConfig() *filter.Config {
	fc := filter.NewConfig()
	fc.OperatorThreshold = c.Filters.OperatorThreshold
	fc.Dataset = c.Dataset
	for _, id := range c.Filters.Disabled {
		fc.Disable(id)
	}
	return fc
}
