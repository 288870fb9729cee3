// Package sync provides the sync command, which runs reconciliation passes
// from the terminal.
package sync

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/cmd/emoji"
	"github.com/agentstation/mirrorsync/internal/cmd/output"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "sync [form|sheet|all]",
		GroupID:   "core",
		Short:     "Reconcile registries against the mirror store",
		ValidArgs: []string{"form", "sheet", "all", "typeform", "airtable"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		Long: `Sync fetches every record from a registry, compares it with the mirror
store and applies additions, updates and deletions. Keys that appear more
than once in the registry are moved to quarantine instead of the mirror.

Without an argument both registries are synced concurrently. The command
exits non-zero when a registry or the store could not be read; individual
write failures are reported in the summary.`,
		Example: `  # Sync both registries
  mirrorsync sync

  # Preview what a sheet pass would change
  mirrorsync sync sheet --dry-run

  # Machine-readable summary
  mirrorsync sync form -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return err
			}
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			return run(cmd, app, target, dryRun)
		},
	}

	cmd.Flags().Bool("dry-run", false, "Compute changes without writing")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, target string, dryRun bool) error {
	format, err := output.Resolve(app.OutputFormat())
	if err != nil {
		return err
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	opts := []mirrorsync.SyncOption{
		mirrorsync.SyncWithDryRun(dryRun),
		mirrorsync.SyncWithRunID(runID),
	}

	app.Logger().Debug().
		Str("target", target).
		Str("run_id", runID).
		Bool("dry_run", dryRun).
		Msg("Starting sync")

	var results []*reconcile.Result
	var syncErr error
	if target == "all" {
		results, syncErr = client.SyncAll(cmd.Context(), opts...)
	} else {
		origin, perr := records.ParseOrigin(target)
		if perr != nil {
			return perr
		}
		var res *reconcile.Result
		res, syncErr = client.Sync(cmd.Context(), origin, opts...)
		if res != nil {
			results = append(results, res)
		}
	}

	summaries := make([]reconcile.Summary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, r.Summary())
	}

	if len(summaries) > 0 {
		if err := printSummaries(cmd.OutOrStdout(), format, summaries); err != nil {
			return err
		}
		if format == output.FormatTable {
			reportFailures(cmd.ErrOrStderr(), summaries, dryRun)
		}
	}

	return syncErr
}

func printSummaries(w io.Writer, format output.Format, summaries []reconcile.Summary) error {
	if err := output.Print(w, format, summaries, func() output.Data {
		return output.SummaryTable(summaries)
	}); err != nil {
		return err
	}
	if format != output.FormatTable {
		return nil
	}

	failures := output.FailuresTable(summaries)
	if len(failures.Rows) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return output.Print(w, format, nil, func() output.Data { return failures })
}

func reportFailures(w io.Writer, summaries []reconcile.Summary, dryRun bool) {
	failed := 0
	for _, s := range summaries {
		failed += s.Failures
	}
	switch {
	case failed > 0:
		fmt.Fprintf(w, "%s %d write(s) failed\n", emoji.Warning, failed)
	case dryRun:
		fmt.Fprintf(w, "%s Dry run, nothing was written\n", emoji.Info)
	default:
		fmt.Fprintf(w, "%s Sync completed\n", emoji.Success)
	}
}
