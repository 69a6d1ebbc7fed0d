// Package main is the entry point for the tab CLI binary.
package main

import (
	"os"

	"github.com/tabarc/tabarc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
