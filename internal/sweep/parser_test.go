package sweep

import (
	"errors"
	"testing"
	"time"

	"github.com/simflowlab/simflow/pkg/models"
)

const sampleYAML = `
id: airfoil-study
name: Airfoil angle of attack study
tool: su2
script: airfoil.sh
schedule: "0 2 * * *"
timeout: 30m
batch_size: 4
params:
  mach: [0.3, 0.5, 0.8]
  alpha: [0, 5, 10]
tags: [aero, nightly]
`

func TestParser_ParseYAML(t *testing.T) {
	parser := NewParser()

	def, err := parser.ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	if def.ID != "airfoil-study" || def.Tool != "su2" || def.Script != "airfoil.sh" {
		t.Errorf("Unexpected definition: %+v", def)
	}
	if def.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v, want 30m", def.Timeout)
	}
	if def.Schedule != "0 2 * * *" {
		t.Errorf("Schedule = %q", def.Schedule)
	}
	if len(def.Params["mach"]) != 3 || len(def.Params["alpha"]) != 3 {
		t.Errorf("Params = %v", def.Params)
	}
	if def.Combinations() != 9 {
		t.Errorf("Combinations() = %d, want 9", def.Combinations())
	}
}

func TestParser_ParseJSON(t *testing.T) {
	parser := NewParser()

	def, err := parser.ParseJSON([]byte(`{
		"id": "mesh-study",
		"tool": "openfoam",
		"script": "cavity.sh",
		"params": {"mesh": ["coarse", "fine"]}
	}`))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if def.Combinations() != 2 {
		t.Errorf("Combinations() = %d, want 2", def.Combinations())
	}
}

func TestParser_InvalidTimeout(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseYAML([]byte(`
id: bad
tool: su2
script: run.sh
timeout: not-a-duration
`))
	if err == nil {
		t.Fatal("Expected error for invalid timeout")
	}
}

func TestValidator(t *testing.T) {
	tests := []struct {
		name  string
		def   Definition
		field string
	}{
		{"missing id", Definition{Tool: "su2", Script: "run.sh"}, "id"},
		{"missing tool", Definition{ID: "x", Script: "run.sh"}, "tool"},
		{"missing script", Definition{ID: "x", Tool: "su2"}, "script"},
		{"empty param list", Definition{
			ID: "x", Tool: "su2", Script: "run.sh",
			Params: map[string][]interface{}{"mach": {}},
		}, "params.mach"},
		{"negative batch size", Definition{
			ID: "x", Tool: "su2", Script: "run.sh", BatchSize: -1,
		}, "batch_size"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.def)
			var subErr *models.SubmissionError
			if !errors.As(err, &subErr) {
				t.Fatalf("err = %v, want SubmissionError", err)
			}
			if subErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", subErr.Field, tt.field)
			}
		})
	}
}

func TestValidator_ValidDefinition(t *testing.T) {
	v := NewValidator()
	def := &Definition{
		ID:     "ok",
		Tool:   "openfoam",
		Script: "run.sh",
		Params: map[string][]interface{}{"re": {100, 1000}},
	}
	if err := v.Validate(def); err != nil {
		t.Errorf("Valid definition rejected: %v", err)
	}
}
