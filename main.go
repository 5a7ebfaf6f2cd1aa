package main

import (
	"os"

	"github.com/zeu5/ur-rl-env/commands"
)

// main entry point, runs the robot environment commands
func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
