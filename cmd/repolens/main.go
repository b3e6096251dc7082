// Package main provides the entry point for the repolens CLI.
package main

import (
	"os"

	"github.com/repolens/repolens/cmd/repolens/commands"
)

func main() {
	os.Exit(commands.Execute())
}
