// The main package for the scu-crawler executable.
package main

import (
	"github.com/scu-nlp/scu-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
