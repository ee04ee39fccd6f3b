package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/record"
	"github.com/roach88/recordkit/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Show     int // version whose schema is printed, 0 for none
}

// HistoryResult lists the registered versions of one subject, or every
// subject when none is given.
type HistoryResult struct {
	Subject  string          `json:"subject,omitempty"`
	Versions []store.Version `json:"versions,omitempty"`
	Subjects []string        `json:"subjects,omitempty"`
	Schema   *record.Schema  `json:"schema,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [subject]",
		Short: "List registered schema versions",
		Long: `List the versions registered for a subject, oldest first.

Without a subject, lists every subject in the database.

Examples:
  recordkit history --db ./schemas.db
  recordkit history Customer --db ./schemas.db
  recordkit history Customer --db ./schemas.db --show 2 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := ""
			if len(args) == 1 {
				subject = args[0]
			}
			return runHistory(opts, subject, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Show, "show", 0, "print the schema of this version")

	return cmd
}

func runHistory(opts *HistoryOptions, subject string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database, store.WithLogger(formatter.Logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if subject == "" {
		subjects, err := st.Subjects(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list subjects", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(HistoryResult{Subjects: subjects})
		}
		if len(subjects) == 0 {
			fmt.Fprintln(formatter.Writer, "No schemas registered")
			return nil
		}
		for _, s := range subjects {
			fmt.Fprintln(formatter.Writer, s)
		}
		return nil
	}

	versions, err := st.Versions(ctx, subject)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list versions", err)
	}
	result := HistoryResult{Subject: subject, Versions: versions}

	if opts.Show > 0 {
		s, err := st.Get(ctx, subject, opts.Show)
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "version not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read schema", err)
		}
		result.Schema = s
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(versions) == 0 {
		fmt.Fprintf(formatter.Writer, "No versions found for subject: %s\n", subject)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%s: %d version(s)\n", subject, len(versions))
	for _, v := range versions {
		fmt.Fprintf(formatter.Writer, "  v%-4d %s  seq=%d\n", v.Version, shortFingerprint(v.Fingerprint), v.Seq)
	}
	if result.Schema != nil {
		data, err := result.Schema.MarshalJSON()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render schema", err)
		}
		fmt.Fprintf(formatter.Writer, "\nv%d:\n%s\n", opts.Show, data)
	}
	return nil
}
