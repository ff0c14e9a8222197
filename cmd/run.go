package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/assetpipe/internal/dag"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/orchestrator"
	"github.com/maxkimambo/assetpipe/internal/utils"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var report string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task and everything it depends on",
		Long: `Runs the named task, or "default", once. Dependencies are scheduled in
stages; tasks inside a stage run concurrently.

Example:
assetpipe run
assetpipe run styles --prod
assetpipe run --keep-going --report build.dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := loadBuildFile(flags)
			if err != nil {
				return err
			}
			o, err := createOrchestrator(flags, bf, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := rootTask(args)
			result, err := o.Run(ctx, root)
			if result == nil {
				return err
			}

			if report != "" {
				exportReport(o, root, result, report)
			}
			if flags.quiet {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), utils.RunSummary(result).Render())
			if err != nil {
				return fmt.Errorf("%w: %v", errReported, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&report, "report", "", "Write the executed plan with task outcomes to a .json or .dot file")
	return cmd
}

// exportReport writes the plan with its outcome. Failures to write are
// logged; they never change the result of the run.
func exportReport(o *orchestrator.Orchestrator, root string, result *dag.ExecutionResult, path string) {
	viz, err := o.Visualize(root, result)
	if err != nil {
		logger.User.Warnf("Failed to build run report: %v", err)
		return
	}

	if strings.HasSuffix(path, ".dot") {
		err = viz.ExportToDOT(path)
	} else {
		err = viz.ExportToJSON(path)
	}
	if err != nil {
		logger.User.Warnf("Failed to write run report: %v", err)
		return
	}
	logger.User.Infof("Run report written to %s", path)
}
