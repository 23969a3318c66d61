// Package main is the entry point for the vodsync CLI.
package main

import (
	"os"

	"github.com/937bb/937cms-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
