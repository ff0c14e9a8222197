package cmd

import (
	"github.com/maxkimambo/assetpipe/internal/config"
	"github.com/maxkimambo/assetpipe/internal/dag"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/orchestrator"
)

// loadBuildFile reads the build file with the option overrides of the
// command line
func loadBuildFile(flags *globalFlags) (*config.BuildFile, error) {
	bf, err := config.Load(flags.file, config.Overrides{
		OptionsFile: flags.optionsFile,
		Set:         flags.set,
		Prod:        flags.prod,
	})
	if err != nil {
		return nil, err
	}

	for _, name := range bf.Options.Names() {
		logger.Op.WithFields(map[string]interface{}{
			"option": name,
			"value":  bf.Options.Display(name),
		}).Debug("Option resolved")
	}
	return bf, nil
}

// createOrchestrator builds the task graph of bf. reloader may be nil.
func createOrchestrator(flags *globalFlags, bf *config.BuildFile, reloader orchestrator.Reloader) (*orchestrator.Orchestrator, error) {
	rt := orchestrator.RuntimeContext{
		ProjectDir: bf.ProjectDir,
		Options:    bf.Options,
		Reloader:   reloader,
	}
	return orchestrator.New(bf, rt, orchestrator.WithExecutorConfig(&dag.ExecutorConfig{
		MaxParallelTasks: flags.maxParallel,
		KeepGoing:        flags.keepGoing,
	}))
}

func rootTask(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return orchestrator.DefaultTask
}
