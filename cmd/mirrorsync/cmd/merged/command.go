// Package merged provides the merged command, which prints the joined view
// of both mirror tables.
package merged

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/cmd/output"
	"github.com/agentstation/mirrorsync/internal/matcher"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// NewCommand creates the merged command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "merged",
		GroupID: "core",
		Short:   "Show mirrored records joined by registration number",
		Long: `Merged reads both mirror tables and joins them by registration number.
Keys present in only one mirror are listed with the other side empty.
The registries themselves are not contacted.`,
		Example: `  # Everything
  mirrorsync merged

  # Registration numbers starting with REG-2024
  mirrorsync merged --match 'REG-2024*'

  # Regex patterns are detected automatically
  mirrorsync merged --match '^REG-\d{4}$' -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			client, err := app.Client()
			if err != nil {
				return err
			}
			merged, err := client.Merged(cmd.Context())
			if err != nil {
				return err
			}
			merged = matcher.Filter(m, merged, func(r records.MergedRecord) string { return r.Key })
			if merged == nil {
				merged = []records.MergedRecord{}
			}
			return output.Print(cmd.OutOrStdout(), format, merged, func() output.Data {
				return output.MergedTable(merged)
			})
		},
	}

	cmd.Flags().String("match", "", "Only show registration numbers matching a glob or regex")

	return cmd
}
