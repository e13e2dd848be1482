package sweep

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/simflowlab/simflow/pkg/models"
)

// Parser parses sweep definitions from YAML or JSON
type Parser struct {
	validator *Validator
}

// NewParser creates a new sweep parser
func NewParser() *Parser {
	return &Parser{
		validator: NewValidator(),
	}
}

// sweepFile is the on-disk shape of a sweep definition. Timeout is a
// duration string so authors write "30m" instead of nanoseconds.
type sweepFile struct {
	ID          string                   `json:"id" yaml:"id"`
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Tool        string                   `json:"tool" yaml:"tool"`
	Script      string                   `json:"script" yaml:"script"`
	Params      map[string][]interface{} `json:"params" yaml:"params"`
	Schedule    string                   `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Timeout     string                   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	BatchSize   int                      `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Sequential  bool                     `json:"sequential,omitempty" yaml:"sequential,omitempty"`
	Tags        []string                 `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsPaused    bool                     `json:"is_paused,omitempty" yaml:"is_paused,omitempty"`
}

// ParseYAMLFile parses a sweep definition from a YAML file
func (p *Parser) ParseYAMLFile(filepath string) (*Definition, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseYAML(data)
}

// ParseYAML parses a sweep definition from YAML bytes
func (p *Parser) ParseYAML(data []byte) (*Definition, error) {
	var sf sweepFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return p.convert(&sf)
}

// ParseJSONFile parses a sweep definition from a JSON file
func (p *Parser) ParseJSONFile(filepath string) (*Definition, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseJSON(data)
}

// ParseJSON parses a sweep definition from JSON bytes
func (p *Parser) ParseJSON(data []byte) (*Definition, error) {
	var sf sweepFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return p.convert(&sf)
}

func (p *Parser) convert(sf *sweepFile) (*Definition, error) {
	var timeout time.Duration
	if sf.Timeout != "" {
		var err error
		timeout, err = time.ParseDuration(sf.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format: %w", err)
		}
	}

	def := &Definition{
		ID:          sf.ID,
		Name:        sf.Name,
		Description: sf.Description,
		Tool:        sf.Tool,
		Script:      sf.Script,
		Params:      sf.Params,
		Schedule:    sf.Schedule,
		Timeout:     timeout,
		BatchSize:   sf.BatchSize,
		Sequential:  sf.Sequential,
		Tags:        sf.Tags,
		IsPaused:    sf.IsPaused,
	}

	if err := p.validator.Validate(def); err != nil {
		return nil, fmt.Errorf("sweep validation failed: %w", err)
	}
	return def, nil
}

// Validator checks sweep definitions for structural problems before
// they reach the queue
type Validator struct{}

// NewValidator creates a new sweep validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the definition and returns the first problem found
func (v *Validator) Validate(def *Definition) error {
	if def.ID == "" {
		return &models.SubmissionError{Field: "id", Reason: "is required"}
	}
	if def.Tool == "" {
		return &models.SubmissionError{Field: "tool", Reason: "is required"}
	}
	if def.Script == "" {
		return &models.SubmissionError{Field: "script", Reason: "is required"}
	}
	for name, values := range def.Params {
		if len(values) == 0 {
			return &models.SubmissionError{
				Field:  fmt.Sprintf("params.%s", name),
				Reason: "must list at least one value",
			}
		}
	}
	if def.BatchSize < 0 {
		return &models.SubmissionError{Field: "batch_size", Reason: "must not be negative"}
	}
	return nil
}
