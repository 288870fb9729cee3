// Package quarantine provides the quarantine command, which lists keys held
// back from the mirror because the registry returned them more than once.
package quarantine

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/cmd/output"
	"github.com/agentstation/mirrorsync/internal/matcher"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// NewCommand creates the quarantine command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "quarantine [form|sheet]",
		GroupID:   "core",
		Short:     "List quarantined duplicate keys",
		ValidArgs: []string{"form", "sheet", "typeform", "airtable"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		Example: `  # All quarantined keys
  mirrorsync quarantine

  # Only sheet duplicates, as YAML
  mirrorsync quarantine sheet -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.Resolve(app.OutputFormat())
			if err != nil {
				return err
			}
			pattern, err := cmd.Flags().GetString("match")
			if err != nil {
				return err
			}
			m, err := matcher.Parse(pattern)
			if err != nil {
				return err
			}

			var origin records.Origin
			if len(args) == 1 {
				if origin, err = records.ParseOrigin(args[0]); err != nil {
					return err
				}
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			entries, err := client.Quarantined(cmd.Context(), origin)
			if err != nil {
				return err
			}
			entries = matcher.Filter(m, entries, func(r records.QuarantineRecord) string { return r.Key })
			if entries == nil {
				entries = []records.QuarantineRecord{}
			}
			return output.Print(cmd.OutOrStdout(), format, entries, func() output.Data {
				return output.QuarantineTable(entries)
			})
		},
	}

	cmd.Flags().String("match", "", "Only show registration numbers matching a glob or regex")

	return cmd
}
