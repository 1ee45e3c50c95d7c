// Command archetypec drives the middle-end pipeline end to end: it reads a
// serialized model (the stand-in for the real lexer/parser/type-checker,
// which stay external per the module's scope), applies the configured
// options, runs the pass pipeline, and prints either the lowered model or
// the diagnostics raised along the way.
package main

import (
	"fmt"
	"os"

	"github.com/gridbugs/archetype-lang/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
