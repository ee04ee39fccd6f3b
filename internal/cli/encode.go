package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/factory"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	BackendOptions
	Input  string
	Output string
}

// EncodeResult summarizes an encode run.
type EncodeResult struct {
	Subject string `json:"subject"`
	Backend string `json:"backend"`
	Records int    `json:"records"`
	Bytes   int    `json:"bytes"`
	Output  string `json:"output,omitempty"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <specs-dir> <subject>",
		Short: "Encode JSON lines records through a backend",
		Long: `Read records as JSON lines, build each one against the named schema
and write them through the configured backend.

Records missing a required value or holding a value of the wrong type
are rejected before anything is written.

Examples:
  recordkit encode ./specs Customer --input customers.jsonl --backend avro -o customers.avro
  recordkit encode ./specs Customer --input customers.jsonl --backend arrow -o customers.arrow`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], args[1], cmd)
		},
	}

	opts.BackendOptions.register(cmd)
	cmd.Flags().StringVar(&opts.Input, "input", "", "JSON lines file to read (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runEncode(opts *EncodeOptions, specsDir, subject string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSchemas(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}
	s, ok := loadResult.Lookup(subject)
	if !ok {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("schema %q not declared in %s", subject, specsDir), nil)
	}

	out, err := opts.newFactory(formatter)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create factory", err)
	}
	defer out.Close()

	if err := out.Check(s); err != nil {
		_ = formatter.Error(ErrCodeUnsupported, err.Error(), nil)
		return WrapExitError(ExitFailure, "schema unsupported", err)
	}

	// JSON lines input is always read by the memory backend.
	in, err := factory.New(factory.DefaultConfig(), factory.WithLogger(out.Logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create reader", err)
	}
	defer in.Close()

	input, err := os.Open(opts.Input)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer input.Close()

	records, err := in.Decode(input, s)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid input records", err)
	}

	var buf bytes.Buffer
	if err := out.Encode(&buf, s, records); err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, factory.ErrUnsupported) {
			code = ErrCodeUnsupported
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "encode failed", err)
	}

	size := buf.Len()
	if err := writeOutput(opts.Output, &buf); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	result := EncodeResult{
		Subject: subject,
		Backend: string(out.Config().Backend),
		Records: len(records),
		Bytes:   size,
		Output:  opts.Output,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Encoded %d record(s) of %s with %s (%d bytes) to %s\n",
		result.Records, result.Subject, result.Backend, result.Bytes, result.Output)
	return nil
}

func writeOutput(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	return f.Close()
}
