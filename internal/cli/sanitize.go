package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/record"
)

// SanitizedName pairs a raw name with its sanitized form.
type SanitizedName struct {
	Raw       string `json:"raw"`
	Sanitized string `json:"sanitized"`
	Changed   bool   `json:"changed"`
}

// NewSanitizeCommand creates the sanitize command.
func NewSanitizeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize <name>...",
		Short: "Show the entry name a raw column name becomes",
		Long: `Apply the entry name sanitizer to each argument.

Sanitized names contain only ASCII letters, digits and underscores and
never start with a digit. Builders apply the same rule to every entry
name and keep the original as the raw name.

Examples:
  recordkit sanitize "Full Name" "1st" "@address"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSanitize(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runSanitize(opts *RootOptions, names []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]SanitizedName, len(names))
	for i, raw := range names {
		s := record.Sanitize(raw)
		results[i] = SanitizedName{Raw: raw, Sanitized: s, Changed: s != raw}
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	for _, r := range results {
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "%q -> %q\n", r.Raw, r.Sanitized)
			continue
		}
		fmt.Fprintln(formatter.Writer, r.Sanitized)
	}
	return nil
}
