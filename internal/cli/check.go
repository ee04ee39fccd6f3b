package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/factory"
)

// BackendOptions holds the flags shared by commands that build a factory.
type BackendOptions struct {
	Backend string
	Config  string
}

func (o *BackendOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Backend, "backend", "", "backend to use (memory|avro|arrow), overrides --config")
	cmd.Flags().StringVar(&o.Config, "config", "", "path to factory YAML config")
}

// newFactory builds a factory from --config, then --backend.
func (o *BackendOptions) newFactory(formatter *OutputFormatter) (*factory.Factory, error) {
	cfg := factory.DefaultConfig()
	if o.Config != "" {
		loaded, err := factory.LoadConfig(o.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.Backend != "" {
		cfg.Backend = factory.BackendKind(o.Backend)
	}
	return factory.New(cfg, factory.WithLogger(formatter.Logger()))
}

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	BackendOptions
	Show bool
}

// CheckResult is the verdict for one schema.
type CheckResult struct {
	Subject string `json:"subject"`
	Backend string `json:"backend"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Native  string `json:"native,omitempty"` // backend schema, with --show
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <specs-dir>",
		Short: "Check that a backend can express every schema",
		Long: `Compile the schema declarations of a CUE directory and ask the
configured backend whether it can express each one.

With --show, prints the backend's own schema: the Avro schema JSON for
avro, the Arrow schema for arrow.

Examples:
  recordkit check ./specs --backend avro --show
  recordkit check ./specs --config ./factory.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	opts.BackendOptions.register(cmd)
	cmd.Flags().BoolVar(&opts.Show, "show", false, "print the backend schema")

	return cmd
}

func runCheck(opts *CheckOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	f, err := opts.newFactory(formatter)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create factory", err)
	}
	defer f.Close()

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

	backend := string(f.Config().Backend)
	results := make([]CheckResult, 0, len(loadResult.Schemas))
	failed := 0
	for _, ns := range loadResult.Schemas {
		r := CheckResult{Subject: ns.Subject, Backend: backend, OK: true}
		if err := f.Check(ns.Schema); err != nil {
			r.OK = false
			r.Reason = err.Error()
			failed++
		} else if opts.Show {
			native, err := nativeSchema(f.Config().Backend, ns)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to render backend schema", err)
			}
			r.Native = native
		}
		results = append(results, r)
	}

	if formatter.Format == "json" {
		if failed > 0 {
			first := results[0]
			for _, r := range results {
				if !r.OK {
					first = r
					break
				}
			}
			if err := formatter.Failure(CLIError{Code: ErrCodeUnsupported, Message: first.Reason}, results); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d schema(s) unsupported by %s", failed, backend))
		}
		return formatter.Success(results)
	}

	for _, r := range results {
		if r.OK {
			fmt.Fprintf(formatter.Writer, "✓ %s\n", r.Subject)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n  %s: %s\n", r.Subject, ErrCodeUnsupported, r.Reason)
		}
		if r.Native != "" {
			fmt.Fprintf(formatter.Writer, "%s\n", r.Native)
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d schema(s) unsupported by %s", failed, backend))
	}
	return nil
}

func nativeSchema(kind factory.BackendKind, ns NamedSchema) (string, error) {
	switch kind {
	case factory.BackendAvro:
		return factory.AvroSchema(ns.Schema)
	case factory.BackendArrow:
		as, err := factory.ArrowSchema(ns.Schema)
		if err != nil {
			return "", err
		}
		return as.String(), nil
	default:
		data, err := ns.Schema.MarshalJSON()
		return string(data), err
	}
}
