// The main package for the dropwatch executable.
package main

import (
	"github.com/JakeFAU/dropwatch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
