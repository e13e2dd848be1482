// Package sweep parses parameter sweep definitions from YAML or JSON
// files so recurring studies can be declared declaratively and run on a
// schedule.
package sweep

import (
	"time"
)

// Definition declares a parameter sweep: one tool/script pair expanded
// over a grid of parameter values
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Tool   string `json:"tool" yaml:"tool"`
	Script string `json:"script" yaml:"script"`

	// Params maps each parameter name to the list of values to sweep
	Params map[string][]interface{} `json:"params" yaml:"params"`

	// Schedule is an optional cron expression for recurring runs
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	// Timeout bounds each task of the sweep
	Timeout time.Duration `json:"-" yaml:"-"`

	// BatchSize submits the sweep in chunks when positive
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	// Sequential runs the sweep one task at a time, continuing past
	// failures
	Sequential bool `json:"sequential,omitempty" yaml:"sequential,omitempty"`

	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsPaused bool     `json:"is_paused,omitempty" yaml:"is_paused,omitempty"`
}

// Combinations returns the number of tasks this sweep expands to
func (d *Definition) Combinations() int {
	total := 1
	for _, values := range d.Params {
		total *= len(values)
	}
	if len(d.Params) == 0 {
		return 1
	}
	return total
}
