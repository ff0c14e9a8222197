package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/assetpipe/internal/config"
	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
)

var version = "v0.1.0"

// globalFlags are shared by every subcommand
type globalFlags struct {
	file        string
	set         []string
	optionsFile string
	prod        bool
	keepGoing   bool
	maxParallel int

	debug    bool
	verbose  bool
	jsonLogs bool
	quiet    bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "assetpipe",
		Short: "Declarative front-end asset build orchestrator",
		Long: `assetpipe builds front-end assets from a declarative build file.

Tasks declare source globs, the transform steps applied to them and a
destination directory. Group tasks run their dependencies in parallel or in
declared order. The watch command re-runs tasks when their sources change
and serves the output with live reload.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWithWriters(flags.verbose || flags.debug, flags.jsonLogs, flags.quiet,
				cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	rootCmd.Version = version

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.file, "file", "f", config.DefaultFile, "Build file")
	pf.StringArrayVar(&flags.set, "set", nil, "Override an option, name=value (repeatable)")
	pf.StringVar(&flags.optionsFile, "options-file", "", "YAML file with option values")
	pf.BoolVar(&flags.prod, "prod", false, "Shorthand for --set prod=true")
	pf.BoolVar(&flags.keepGoing, "keep-going", false, "Keep running independent tasks after a failure")
	pf.IntVar(&flags.maxParallel, "max-parallel", 0, "Maximum concurrent tasks per stage (0 = unlimited)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.jsonLogs, "json", false, "Output logs in JSON format")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress non-error output")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newWatchCmd(flags),
		newPlanCmd(flags),
		newTasksCmd(flags),
	)
	return rootCmd
}

// Execute runs the CLI and reports the error that ended it
func Execute() error {
	rootCmd := NewRootCmd()
	err := rootCmd.Execute()
	if err != nil {
		reportError(rootCmd, err)
	}
	return err
}

// errReported marks failures whose details were already printed
var errReported = errors.New("build failed")

func reportError(cmd *cobra.Command, err error) {
	if errors.Is(err, errReported) {
		return
	}
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	debug, _ := cmd.PersistentFlags().GetBool("debug")
	if verbose || debug || buildErrors.IsConfigurationError(err) {
		fmt.Fprint(cmd.ErrOrStderr(), buildErrors.FormatForCLI(err))
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", buildErrors.Summary(err))
}
