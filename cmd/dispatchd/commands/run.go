package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/dispatch/pkg/config"
	"github.com/vnykmshr/dispatch/pkg/logging"
)

func newRunCommand(mgr *config.Manager) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker pool, event bus and scheduler",
		Long: `Run the worker pool, event bus and scheduler until interrupted.

On SIGINT or SIGTERM the scheduler stops, the pool stops accepting jobs and
drains everything already queued, then the metrics endpoint closes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mgr.Get()

			logConfig := cfg.Log.Logging()
			logConfig.Output = cmd.ErrOrStderr()
			logger := logging.ConfigureGlobal(logConfig)

			daemon, err := NewDaemon(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return daemon.Run(ctx, shutdownTimeout)
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to drain the pool on shutdown")
	return cmd
}
