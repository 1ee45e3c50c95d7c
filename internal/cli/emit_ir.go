package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridbugs/archetype-lang/internal/modelio"
	"github.com/gridbugs/archetype-lang/internal/printer"
)

// newEmitIRCommand prints the model's current textual form without running
// any pass, useful for inspecting a front-end's output before it reaches
// the pipeline.
func newEmitIRCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "emit-ir [model.yaml]",
		Short: "Print a serialized model without running the pass pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mdl, err := modelio.Decode(raw)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), printer.Print(mdl))
			return nil
		},
	}
}
