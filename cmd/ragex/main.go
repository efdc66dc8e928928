// Package main provides the entry point for the ragex CLI.
package main

import (
	"os"

	"github.com/codesearch/ragex/cmd/ragex/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
