// Package main is the entry point for the orgweave CLI.
package main

import (
	"os"

	"github.com/OrgWeave/OrgWeave/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
