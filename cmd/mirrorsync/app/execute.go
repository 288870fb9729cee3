package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/internal/cmd/globals"
)

// Execute runs the mirrorsync CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "mirrorsync",
		Short:   "Registry mirror reconciliation",
		Version: a.version,
		Long: `mirrorsync keeps a key-value mirror of two external registries, a
Typeform form and an Airtable table, in step with their source of truth.

Each sync pass adds, updates and deletes mirrored records so downstream
readers never need to call the registries directly. Registration numbers
that appear more than once in a registry are quarantined until the
duplicate is resolved.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	globals.AddFlags(rootCmd)
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.mirrorsync.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("mirrorsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs. Flags take precedence
// over every other configuration source.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if path := mustGetString(cmd, "config"); path != "" {
		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}
		a.config = cfg
	}

	flags := globals.Parse(cmd)
	a.config.UpdateFromFlags(flags.Verbose, flags.Quiet, flags.NoColor, flags.Output, mustGetString(cmd, "log-level"))

	if f := cmd.Flags().Lookup("interval"); f != nil && f.Changed {
		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			return err
		}
		a.config.SyncInterval = interval
	}

	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewSyncCommand())
	rootCmd.AddCommand(a.NewMergedCommand())
	rootCmd.AddCommand(a.NewQuarantineCommand())
	rootCmd.AddCommand(a.NewServeCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
