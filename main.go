// The main package for the tinker-api executable.
package main

import (
	"github.com/chatmle/tinker-api/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
