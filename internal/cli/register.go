package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/store"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Database string
	Subject  string // optional - register only this schema
}

// Registration is the outcome for one schema.
type Registration struct {
	store.Version
	Created bool `json:"created"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <specs-dir>",
		Short: "Record compiled schemas as subject versions",
		Long: `Compile the schema declarations of a CUE directory and store each one
as the next version of its subject.

Registering a schema whose fingerprint the subject already has is a
no-op that reports the existing version.

Examples:
  recordkit register ./specs --db ./schemas.db
  recordkit register ./specs --db ./schemas.db --subject Customer`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "register only this schema")

	return cmd
}

func runRegister(opts *RegisterOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSchemas(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	schemas := loadResult.Schemas
	if opts.Subject != "" {
		s, ok := loadResult.Lookup(opts.Subject)
		if !ok {
			return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("schema %q not declared in %s", opts.Subject, specsDir), nil)
		}
		schemas = []NamedSchema{{Subject: opts.Subject, Schema: s}}
	}

	st, err := store.Open(opts.Database, store.WithLogger(formatter.Logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	results := make([]Registration, 0, len(schemas))
	for _, ns := range schemas {
		v, created, err := st.Register(ctx, ns.Subject, ns.Schema)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to register "+ns.Subject, err)
		}
		formatter.VerboseLog("Registered %s version %d (created=%t)", v.Subject, v.Version, created)
		results = append(results, Registration{Version: v, Created: created})
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}

	for _, r := range results {
		state := "unchanged"
		if r.Created {
			state = "new"
		}
		fmt.Fprintf(formatter.Writer, "  %s v%d %s (%s)\n", r.Subject, r.Version.Version, shortFingerprint(r.Fingerprint), state)
	}
	return nil
}
