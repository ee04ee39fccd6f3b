package migration

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultSeparator is used by split and merge operations that name none.
const DefaultSeparator = ","

// Step lists the operations that bring a configuration up to Version.
type Step struct {
	Version     int    `yaml:"version"`
	Description string `yaml:"description,omitempty"`
	Ops         []Op   `yaml:"ops"`
}

// Op is one operation. Exactly one field is set.
type Op struct {
	Add    *AddOp    `yaml:"add,omitempty"`
	Rename *RenameOp `yaml:"rename,omitempty"`
	Remove *RemoveOp `yaml:"remove,omitempty"`
	Change *ChangeOp `yaml:"change,omitempty"`
	Split  *SplitOp  `yaml:"split,omitempty"`
	Merge  *MergeOp  `yaml:"merge,omitempty"`
}

type AddOp struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type RenameOp struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type RemoveOp struct {
	Key string `yaml:"key"`
}

// ChangeOp sets Value, only when the current value equals When if When
// is given.
type ChangeOp struct {
	Key   string  `yaml:"key"`
	Value string  `yaml:"value"`
	When  *string `yaml:"when,omitempty"`
}

type SplitOp struct {
	Key       string   `yaml:"key"`
	Into      []string `yaml:"into"`
	Separator string   `yaml:"separator,omitempty"`
}

type MergeOp struct {
	Keys      []string `yaml:"keys"`
	Into      string   `yaml:"into"`
	Separator string   `yaml:"separator,omitempty"`
}

// Plan is a declarative Handler: it applies, in version order, every step
// newer than the incoming version.
type Plan struct {
	listenerSet
	steps  []Step
	logger *slog.Logger
}

type planFile struct {
	Steps []Step `yaml:"steps"`
}

// NewPlan validates steps and returns a plan ordered by version.
func NewPlan(steps ...Step) (*Plan, error) {
	sorted := slices.Clone(steps)
	slices.SortStableFunc(sorted, func(a, b Step) int { return a.Version - b.Version })
	for i, s := range sorted {
		if s.Version <= 0 {
			return nil, invalidPlan("step version must be positive, got %d", s.Version)
		}
		if i > 0 && sorted[i-1].Version == s.Version {
			return nil, invalidPlan("version %d declared twice", s.Version)
		}
		for j, op := range s.Ops {
			if err := op.validate(); err != nil {
				return nil, invalidPlan("version %d op %d: %s", s.Version, j, err.Message)
			}
		}
	}
	return &Plan{steps: sorted, logger: slog.Default()}, nil
}

// LoadPlan reads a YAML plan file.
// Unknown fields are rejected so that typos surface as errors.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var pf planFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	p, err := NewPlan(pf.Steps...)
	if err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return p, nil
}

// WithLogger sets the logger used for step progress.
func (p *Plan) WithLogger(logger *slog.Logger) *Plan {
	p.logger = logger
	return p
}

// CurrentVersion is the highest version the plan migrates to, 0 when the
// plan is empty.
func (p *Plan) CurrentVersion() int {
	if len(p.steps) == 0 {
		return 0
	}
	return p.steps[len(p.steps)-1].Version
}

// Steps returns the steps in version order.
func (p *Plan) Steps() []Step { return slices.Clone(p.steps) }

// Migrate implements Handler.
func (p *Plan) Migrate(incomingVersion int, data map[string]string) (map[string]string, error) {
	c := newConfig(data, p.snapshot(), p.logger)
	for _, s := range p.steps {
		if s.Version <= incomingVersion {
			continue
		}
		p.logger.Info("applying migration step", "version", s.Version, "ops", len(s.Ops))
		for i, op := range s.Ops {
			if err := op.apply(c); err != nil {
				return nil, fmt.Errorf("migrate to version %d op %d: %w", s.Version, i, err)
			}
		}
	}
	return c.values, nil
}

func (op Op) validate() *Error {
	set := 0
	for _, present := range []bool{op.Add != nil, op.Rename != nil, op.Remove != nil, op.Change != nil, op.Split != nil, op.Merge != nil} {
		if present {
			set++
		}
	}
	switch {
	case set == 0:
		return invalidPlan("empty operation")
	case set > 1:
		return invalidPlan("operation declares %d kinds", set)
	case op.Split != nil && len(op.Split.Into) == 0:
		return invalidPlan("split of %q has no target keys", op.Split.Key)
	case op.Merge != nil && len(op.Merge.Keys) == 0:
		return invalidPlan("merge into %q has no source keys", op.Merge.Into)
	}
	return nil
}

func (op Op) apply(c *Config) error {
	switch {
	case op.Add != nil:
		return c.AddKey(op.Add.Key, op.Add.Value)
	case op.Rename != nil:
		return c.RenameKey(op.Rename.From, op.Rename.To)
	case op.Remove != nil:
		return c.RemoveKey(op.Remove.Key)
	case op.Change != nil:
		if op.Change.When != nil {
			when := *op.Change.When
			return c.ChangeValueIf(op.Change.Key, op.Change.Value, func(v string) bool { return v == when })
		}
		return c.ChangeValue(op.Change.Key, op.Change.Value)
	case op.Split != nil:
		return c.SplitProperty(op.Split.Key, op.Split.Into, SplitOn(separator(op.Split.Separator)))
	case op.Merge != nil:
		return c.MergeProperties(op.Merge.Keys, op.Merge.Into, JoinWith(separator(op.Merge.Separator)))
	}
	return invalidPlan("empty operation")
}

func separator(sep string) string {
	if sep == "" {
		return DefaultSeparator
	}
	return sep
}
