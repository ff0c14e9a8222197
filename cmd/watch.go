package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/orchestrator"
	"github.com/maxkimambo/assetpipe/internal/server"
	"github.com/maxkimambo/assetpipe/internal/watch"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var (
		port     int
		noServer bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [task]",
		Short: "Build once, then rebuild on change and serve with live reload",
		Long: `Runs the named task, or "default", once and then watches the patterns of
every watch block. A change re-runs the bound task; when the run succeeds
connected browsers reload.

Example:
assetpipe watch
assetpipe watch --port 8080
assetpipe watch styles --no-server`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := loadBuildFile(flags)
			if err != nil {
				return err
			}

			var (
				srv      *server.Server
				reloader orchestrator.Reloader
			)
			if !noServer {
				if port == 0 {
					port = bf.Server.Port
				}
				hub := server.NewHub()
				srv = server.New(server.Config{
					Dir:  filepath.Join(bf.ProjectDir, bf.Server.Dir),
					Port: port,
				}, hub)
				reloader = hub
			}

			o, err := createOrchestrator(flags, bf, reloader)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// the initial build may fail; watching continues so it can be fixed
			if _, err := o.Run(ctx, rootTask(args)); err != nil {
				logger.User.Errorf("Initial build failed: %v", err)
			}

			if srv != nil {
				if err := srv.Start(); err != nil {
					return err
				}
				defer func() {
					if err := srv.Shutdown(context.Background()); err != nil {
						logger.User.Warnf("%v", err)
					}
				}()
			}

			src, err := watch.NewFSSource(bf.ProjectDir, o.WatchPatterns())
			if err != nil {
				return err
			}
			defer src.Close()

			err = o.Watch(ctx, src.Events(), debounce)
			logger.User.Info("Stopped watching")
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Dev server port (0 = port of the server block)")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "Watch and rebuild without serving")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a run")
	return cmd
}
