package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/assetpipe/internal/utils"
)

func newTasksCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks and options of the build file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := loadBuildFile(flags)
			if err != nil {
				return err
			}
			// builds the graph so declaration errors surface here too
			if _, err := createOrchestrator(flags, bf, nil); err != nil {
				return err
			}

			table := utils.NewTableFormatter("TASK", "MODE", "DEPENDS ON", "DESCRIPTION")
			for _, t := range bf.Tasks {
				table.AddRow(t.Name, t.Mode.String(), strings.Join(t.DependsOn, ", "), t.Description)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, table.String())

			if names := bf.Options.Names(); len(names) > 0 {
				options := utils.NewTableFormatter("OPTION", "VALUE")
				for _, name := range names {
					options.AddRow(name, bf.Options.Display(name))
				}
				fmt.Fprint(out, options.String())
			}
			return nil
		},
	}
}
