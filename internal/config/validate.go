package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapqdmr/internal/filter"
)

// Valid output and log formats.
var (
	OutputFormats = []string{"auto", "text", "markdown", "json", "csv"}
	LogFormats    = []string{"text", "json"}
)

// Validate checks the configuration. Errors name the offending key.
func (c *Config) Validate() error {
	if c.Dataset != "" && !slices.Contains(filter.Datasets, c.Dataset) {
		return fmt.Errorf("dataset: unknown dataset %q (want one of %v)", c.Dataset, filter.Datasets)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative, got %d", c.Workers)
	}
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("output: unknown format %q (want one of %v)", c.Output, OutputFormats)
	}
	if !slices.Contains(LogFormats, c.LogFormat) {
		return fmt.Errorf("log_format: unknown format %q (want one of %v)", c.LogFormat, LogFormats)
	}
	known := filter.IDs()
	for _, id := range c.Filters.Disabled {
		if !slices.Contains(known, id) {
			return fmt.Errorf("filters.disabled: unknown filter %q", id)
		}
	}
	if t := c.Filters.OperatorThreshold; t < 0 || t > 100 {
		return fmt.Errorf("filters.operator_threshold: must be a percentage in [0, 100], got %g", t)
	}
	return nil
}
