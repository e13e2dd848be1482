// Package errorhandling classifies task errors by severity and
// retryability, and decides how a failure propagates through a running
// workflow.
package errorhandling

import (
	"errors"
	"strings"

	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/pkg/models"
)

// PropagationPolicy defines how a task failure affects the rest of the
// workflow
type PropagationPolicy string

const (
	// PolicyFailFast aborts the workflow on the first failure
	PolicyFailFast PropagationPolicy = "fail_fast"

	// PolicyContinueOnError logs the failure and proceeds with the
	// remaining tasks; sequential workflows use this
	PolicyContinueOnError PropagationPolicy = "continue_on_error"
)

// severityRule maps an error message fragment to a severity
type severityRule struct {
	pattern  string
	severity routing.ErrorSeverity
}

// Classifier maps errors onto a severity and retryability. Typed errors
// are matched first; message fragments are the fallback for errors that
// arrive as plain worker-reported strings.
type Classifier struct {
	rules     []severityRule
	retryable map[routing.ErrorSeverity]bool
}

// NewClassifier creates a classifier with the default rules
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []severityRule{
			{"out of memory", routing.SeverityCritical},
			{"disk full", routing.SeverityCritical},
			{"license", routing.SeverityCritical},
			{"diverged", routing.SeverityHigh},
			{"segmentation fault", routing.SeverityHigh},
			{"timed out", routing.SeverityMedium},
			{"timeout", routing.SeverityMedium},
			{"connection refused", routing.SeverityMedium},
			{"unavailable", routing.SeverityMedium},
			{"cancelled", routing.SeverityLow},
		},
		retryable: map[routing.ErrorSeverity]bool{
			routing.SeverityLow:    true,
			routing.SeverityMedium: true,
		},
	}
}

// AddRule appends a message-fragment rule. Rules are checked in order,
// so more specific fragments should be added before general ones.
func (c *Classifier) AddRule(pattern string, severity routing.ErrorSeverity) {
	c.rules = append(c.rules, severityRule{pattern: pattern, severity: severity})
}

// Classify returns the severity of an error
func (c *Classifier) Classify(err error) routing.ErrorSeverity {
	if err == nil {
		return routing.SeverityLow
	}

	var timeoutErr *models.TimeoutError
	if errors.As(err, &timeoutErr) {
		return routing.SeverityMedium
	}
	var cancelErr *models.CancellationError
	if errors.As(err, &cancelErr) {
		return routing.SeverityLow
	}
	if errors.Is(err, models.ErrQueueUnavailable) {
		return routing.SeverityMedium
	}
	var subErr *models.SubmissionError
	if errors.As(err, &subErr) {
		// Malformed specs never get better by retrying.
		return routing.SeverityHigh
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range c.rules {
		if strings.Contains(msg, rule.pattern) {
			return rule.severity
		}
	}

	return routing.SeverityHigh
}

// IsRetryable reports whether an error of this severity is worth
// retrying. Critical and high severities are not.
func (c *Classifier) IsRetryable(severity routing.ErrorSeverity) bool {
	return c.retryable[severity]
}

// ClassifyMessage classifies a worker-reported error string
func (c *Classifier) ClassifyMessage(msg string) routing.ErrorSeverity {
	if msg == "" {
		return routing.SeverityLow
	}
	return c.Classify(errors.New(msg))
}

// ShouldContinue reports whether a workflow should proceed after a task
// failed under the given policy. Critical errors always stop the
// workflow, regardless of policy.
func ShouldContinue(policy PropagationPolicy, severity routing.ErrorSeverity) bool {
	if severity == routing.SeverityCritical {
		return false
	}
	return policy == PolicyContinueOnError
}
