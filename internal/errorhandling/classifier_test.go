package errorhandling

import (
	"errors"
	"testing"
	"time"

	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/pkg/models"
)

func TestClassifier_TypedErrors(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		err  error
		want routing.ErrorSeverity
	}{
		{"timeout", &models.TimeoutError{Operation: "wait", Timeout: time.Second}, routing.SeverityMedium},
		{"cancellation", &models.CancellationError{TaskID: "t1", Reason: "terminal"}, routing.SeverityLow},
		{"queue unavailable", models.ErrQueueUnavailable, routing.SeverityMedium},
		{"submission", &models.SubmissionError{Field: "tool", Reason: "is required"}, routing.SeverityHigh},
		{"nil", nil, routing.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifier_MessagePatterns(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		msg  string
		want routing.ErrorSeverity
	}{
		{"solver ran Out of Memory on node 3", routing.SeverityCritical},
		{"no license seats available", routing.SeverityCritical},
		{"residuals diverged at iteration 500", routing.SeverityHigh},
		{"connection refused by queue broker", routing.SeverityMedium},
		{"request timed out", routing.SeverityMedium},
		{"some unrecognized failure", routing.SeverityHigh},
	}

	for _, tt := range tests {
		if got := c.ClassifyMessage(tt.msg); got != tt.want {
			t.Errorf("ClassifyMessage(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestClassifier_CustomRule(t *testing.T) {
	c := NewClassifier()
	c.AddRule("mesh quality", routing.SeverityLow)

	if got := c.ClassifyMessage("mesh quality warning"); got != routing.SeverityLow {
		t.Errorf("Custom rule not applied, got %s", got)
	}
}

func TestClassifier_IsRetryable(t *testing.T) {
	c := NewClassifier()

	if !c.IsRetryable(routing.SeverityLow) || !c.IsRetryable(routing.SeverityMedium) {
		t.Error("Low and medium severities should be retryable")
	}
	if c.IsRetryable(routing.SeverityHigh) || c.IsRetryable(routing.SeverityCritical) {
		t.Error("High and critical severities should not be retryable")
	}
}

func TestShouldContinue(t *testing.T) {
	tests := []struct {
		policy   PropagationPolicy
		severity routing.ErrorSeverity
		want     bool
	}{
		{PolicyContinueOnError, routing.SeverityHigh, true},
		{PolicyContinueOnError, routing.SeverityCritical, false},
		{PolicyFailFast, routing.SeverityLow, false},
		{PolicyFailFast, routing.SeverityCritical, false},
	}

	for _, tt := range tests {
		if got := ShouldContinue(tt.policy, tt.severity); got != tt.want {
			t.Errorf("ShouldContinue(%s, %s) = %v, want %v", tt.policy, tt.severity, got, tt.want)
		}
	}
}

func TestClassifier_WrappedErrors(t *testing.T) {
	c := NewClassifier()

	wrapped := errors.Join(errors.New("outer"), &models.TimeoutError{Operation: "poll", Timeout: time.Second})
	if got := c.Classify(wrapped); got != routing.SeverityMedium {
		t.Errorf("Wrapped timeout classified as %s, want medium", got)
	}
}
