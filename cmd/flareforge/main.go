// ABOUTME: Entry point for the flareforge workspace CLI
// ABOUTME: Sets up the Cobra root command and executes it

package main

import (
	"fmt"
	"os"

	"github.com/flareos/flareforge/cmd/flareforge/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	commands.SetVersion(version)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
