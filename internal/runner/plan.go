package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TotalMark is the mark that spans a whole run; steps may not use it
const TotalMark = "total"

var (
	ErrEmptyPlan     = errors.New("plan has no steps")
	ErrStepName      = errors.New("step name is required")
	ErrStepCommand   = errors.New("step command is required")
	ErrDuplicateStep = errors.New("duplicate step name")
	ErrReservedStep  = errors.New("step name is reserved")
	ErrStepTimeout   = errors.New("invalid step timeout")
)

// Plan is an ordered list of commands to time
type Plan struct {
	App   string `json:"app,omitempty" yaml:"app"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is one command of a plan. Its name is also its mark name.
type Step struct {
	Name    string            `json:"name" yaml:"name"`
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Timeout string            `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "30s", empty for none
}

// LoadPlan reads and validates a plan from a YAML file.
// Relative step directories are resolved against the plan file location.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	base := filepath.Dir(path)
	for i := range plan.Steps {
		if plan.Steps[i].Dir != "" && !filepath.IsAbs(plan.Steps[i].Dir) {
			plan.Steps[i].Dir = filepath.Join(base, plan.Steps[i].Dir)
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}

// CommandPlan builds a single step plan from a command line
func CommandPlan(app, name string, argv []string) (*Plan, error) {
	if len(argv) == 0 {
		return nil, ErrStepCommand
	}
	if name == "" {
		name = filepath.Base(argv[0])
	}
	plan := &Plan{
		App: app,
		Steps: []Step{{
			Name:    name,
			Command: argv[0],
			Args:    argv[1:],
		}},
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks that every step can be run and marked unambiguously
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return ErrEmptyPlan
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		switch {
		case s.Name == "":
			return fmt.Errorf("step %d: %w", i+1, ErrStepName)
		case s.Name == TotalMark:
			return fmt.Errorf("step %d: %w: %q", i+1, ErrReservedStep, s.Name)
		case s.Command == "":
			return fmt.Errorf("step %q: %w", s.Name, ErrStepCommand)
		case seen[s.Name]:
			// a repeated name would stretch the first interval over both runs
			return fmt.Errorf("step %q: %w", s.Name, ErrDuplicateStep)
		}
		seen[s.Name] = true

		if _, err := s.timeout(); err != nil {
			return fmt.Errorf("step %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s Step) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrStepTimeout, s.Timeout)
	}
	return d, nil
}

// StepNames returns the step names in plan order
func (p *Plan) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}
