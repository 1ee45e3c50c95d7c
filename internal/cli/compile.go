package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/modelio"
	"github.com/gridbugs/archetype-lang/internal/passes"
	"github.com/gridbugs/archetype-lang/internal/printer"
)

func newCompileCommand(root *RootOptions) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "compile [model.yaml]",
		Short: "Run the pass pipeline over a serialized model and print the lowered result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, root, args[0], configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML options file")
	return cmd
}

func runCompile(cmd *cobra.Command, root *RootOptions, modelPath, configPath string) error {
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return err
	}
	mdl, err := modelio.Decode(raw)
	if err != nil {
		return err
	}

	opts := config.Default()
	if configPath != "" {
		opts, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	var progress = cmd.ErrOrStderr()
	if !root.Verbose {
		progress = nil
	}

	pipeline := passes.NewPipeline()
	lowered, bus, err := pipeline.Run(mdl, opts, progress)
	if stop, ok := err.(*diag.Stop); ok {
		reporter := diag.NewReporter(modelPath, string(raw))
		reporter.Report(cmd.OutOrStdout(), bus)
		return fmt.Errorf("compilation stopped with code %d", stop.Code)
	} else if err != nil {
		return err
	}

	if len(bus.Warnings()) > 0 {
		reporter := diag.NewReporter(modelPath, string(raw))
		for _, w := range bus.Warnings() {
			fmt.Fprint(cmd.ErrOrStderr(), reporter.Format(w))
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), printer.Print(lowered))
	fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString("compiled %d function(s)", len(lowered.Functions)))
	return nil
}
