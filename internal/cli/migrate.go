package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recordkit/internal/migration"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Plan    string
	Data    string
	Version int
	Output  string
}

// MigrateResult is the migrated configuration and what changed.
type MigrateResult struct {
	FromVersion int               `json:"from_version"`
	ToVersion   int               `json:"to_version"`
	Data        map[string]string `json:"data"`
	Changes     []string          `json:"changes"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate connector configuration keys with a plan",
		Long: `Apply a YAML migration plan to a flat key/value configuration.

Every plan step newer than --version runs, in version order. The data
file is a YAML or JSON mapping of string keys to string values.

Examples:
  recordkit migrate --plan plan.yaml --data config.yaml --version 1
  recordkit migrate --plan plan.yaml --data config.yaml --version 1 -o migrated.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to migration plan YAML (required)")
	_ = cmd.MarkFlagRequired("plan")
	cmd.Flags().StringVar(&opts.Data, "data", "", "path to configuration data (required)")
	_ = cmd.MarkFlagRequired("data")
	cmd.Flags().IntVar(&opts.Version, "version", 0, "version the data was written with")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the migrated data as YAML to this path")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plan, err := migration.LoadPlan(opts.Plan)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}
	plan.WithLogger(formatter.Logger())

	data, err := loadConfigData(opts.Data)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load data", err)
	}

	changes := &changeRecorder{}
	plan.RegisterListener(changes)
	defer plan.UnregisterListener(changes)

	migrated, err := plan.Migrate(opts.Version, data)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "migration failed", err)
	}

	if opts.Output != "" {
		out, err := yaml.Marshal(migrated)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render data", err)
		}
		if err := os.WriteFile(opts.Output, out, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	result := MigrateResult{
		FromVersion: opts.Version,
		ToVersion:   max(opts.Version, plan.CurrentVersion()),
		Data:        migrated,
		Changes:     changes.lines,
	}
	if result.Changes == nil {
		result.Changes = []string{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Migrated from version %d to %d (%d change(s))\n",
		result.FromVersion, result.ToVersion, len(result.Changes))
	if formatter.Verbose {
		for _, c := range result.Changes {
			fmt.Fprintf(formatter.Writer, "  %s\n", c)
		}
	}
	fmt.Fprintln(formatter.Writer)
	keys := make([]string, 0, len(migrated))
	for k := range migrated {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "%s=%s\n", k, migrated[k])
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote migrated data to %s\n", opts.Output)
	}
	return nil
}

// loadConfigData reads a flat string mapping. JSON parses as YAML.
func loadConfigData(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	var data map[string]string
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

// changeRecorder turns listener callbacks into one line per operation.
type changeRecorder struct {
	lines []string
}

func (r *changeRecorder) add(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *changeRecorder) OnAddKey(_ map[string]string, key, value string) {
	r.add("add %s=%q", key, value)
}

func (r *changeRecorder) OnRenameKey(_ map[string]string, oldKey, newKey string) {
	r.add("rename %s -> %s", oldKey, newKey)
}

func (r *changeRecorder) OnRemoveKey(_ map[string]string, key string) {
	r.add("remove %s", key)
}

func (r *changeRecorder) OnChangeValue(_ map[string]string, key, oldValue, newValue string) {
	r.add("change %s: %q -> %q", key, oldValue, newValue)
}

func (r *changeRecorder) OnSplitProperty(_ map[string]string, oldKey string, newKeys []string) {
	r.add("split %s -> %s", oldKey, strings.Join(newKeys, ", "))
}

func (r *changeRecorder) OnMergeProperties(_ map[string]string, oldKeys []string, newKey string) {
	r.add("merge %s -> %s", strings.Join(oldKeys, ", "), newKey)
}
