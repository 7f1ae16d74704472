// Package main is the paperdex entry point.
package main

import (
	"os"

	"github.com/kailas-cloud/paperdex/cmd/paperdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
