// Package main provides the leapqdmr command line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/leapqdmr/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
