// Package main provides the polyglot command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/polyglot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
