package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan [task]",
		Short: "Print the execution stages of a task without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := loadBuildFile(flags)
			if err != nil {
				return err
			}
			o, err := createOrchestrator(flags, bf, nil)
			if err != nil {
				return err
			}
			viz, err := o.Visualize(rootTask(args), nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "text":
				fmt.Fprint(out, viz.GenerateTextSummary())
			case "json":
				data, err := viz.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			case "dot":
				fmt.Fprint(out, viz.GenerateDOTGraph())
			default:
				return fmt.Errorf("unknown output format %q (want text, json or dot)", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or dot")
	return cmd
}
