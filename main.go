// Package main is the entry point for code-researcher.
// All logic lives in internal/; see internal/cmd for the command tree.
package main

import (
	"log"
	"os"

	"github.com/bad33ndj3/code-researcher/internal/cmd"
)

func main() {
	// MCP stdio servers must keep stdout clean.
	log.SetOutput(os.Stderr)

	os.Exit(cmd.Execute())
}
