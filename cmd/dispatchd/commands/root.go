// Package commands implements the dispatchd command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/dispatch/pkg/config"
)

const cliExecutable = "dispatchd"

// NewCommand constructs the top-level dispatchd command. Configuration is
// loaded once, before any subcommand runs.
func NewCommand() *cobra.Command {
	var configFile string
	mgr := config.NewManager()

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "dispatchd runs a bounded worker pool and event bus",
		Long: `dispatchd hosts a worker pool fed by a shared queue, an in-process event
bus and a scheduler dispatching timed jobs into the pool.

Configuration is read from defaults, an optional YAML file (--config),
DISPATCH_* environment variables and flags, in increasing priority.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand(mgr))
	cmd.AddCommand(newConfigCommand(mgr))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
