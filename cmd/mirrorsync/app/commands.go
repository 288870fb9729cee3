package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/cmd/mirrorsync/cmd/merged"
	"github.com/agentstation/mirrorsync/cmd/mirrorsync/cmd/quarantine"
	"github.com/agentstation/mirrorsync/cmd/mirrorsync/cmd/serve"
	synccmd "github.com/agentstation/mirrorsync/cmd/mirrorsync/cmd/sync"
)

// NewSyncCommand creates the sync command with app dependencies.
func (a *App) NewSyncCommand() *cobra.Command {
	return synccmd.NewCommand(a)
}

// NewMergedCommand creates the merged command with app dependencies.
func (a *App) NewMergedCommand() *cobra.Command {
	return merged.NewCommand(a)
}

// NewQuarantineCommand creates the quarantine command with app dependencies.
func (a *App) NewQuarantineCommand() *cobra.Command {
	return quarantine.NewCommand(a)
}

// NewServeCommand creates the serve command with app dependencies.
func (a *App) NewServeCommand() *cobra.Command {
	return serve.NewCommand(a, func() serve.Defaults {
		return serve.Defaults{
			Addr:     a.config.HTTPAddr,
			Interval: a.config.SyncInterval,
			Auth:     a.config.Auth,
			Gatherer: a.registry,
		}
	})
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("mirrorsync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
