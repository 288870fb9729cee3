// Package globals holds the persistent flags shared by every command.
package globals

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/internal/cmd/output"
)

// Flags holds global common flags across all commands.
type Flags struct {
	Output  string
	Quiet   bool
	Verbose bool
	NoColor bool
}

// AddFlags adds common flags to the root command.
func AddFlags(cmd *cobra.Command) *Flags {
	flags := &Flags{}

	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "",
		"Output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&flags.Output, "format", "", "")
	_ = cmd.PersistentFlags().MarkHidden("format")

	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false,
		"Minimal output")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false,
		"Verbose output")
	cmd.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false,
		"Disable colored output")

	return flags
}

// Parse reads the global flags from the root of cmd's hierarchy.
func Parse(cmd *cobra.Command) *Flags {
	root := cmd.Root()
	out, _ := root.PersistentFlags().GetString("output")
	quiet, _ := root.PersistentFlags().GetBool("quiet")
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	noColor, _ := root.PersistentFlags().GetBool("no-color")

	return &Flags{
		Output:  out,
		Quiet:   quiet,
		Verbose: verbose,
		NoColor: noColor,
	}
}

// Format resolves the output format, validating an explicit value and
// falling back to terminal detection.
func (f *Flags) Format() (output.Format, error) {
	return output.Resolve(f.Output)
}
