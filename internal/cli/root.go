// Package cli wires the cobra command tree the archetypec binary exposes:
// a root command carrying shared flags plus a compile subcommand that runs
// the pipeline end to end.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions carries flags shared across every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	root := &cobra.Command{
		Use:   "archetypec",
		Short: "Archetype middle-end pass pipeline driver",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if opts.Format == f {
					return nil
				}
			}
			return fmt.Errorf("invalid --format %q, must be one of %v", opts.Format, ValidFormats)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print pass-by-pass progress")
	root.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format: text or json")

	root.AddCommand(newCompileCommand(opts))
	root.AddCommand(newEmitIRCommand(opts))

	return root
}
