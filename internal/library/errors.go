// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"errors"
	"fmt"
)

// ErrValidationFailed marks a library (or document) that cannot be scanned at all.
// Callers test for it with errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// RuleLoadError reports a single malformed rule. It is never fatal: the rule
// is skipped and the run continues with the remaining rules.
type RuleLoadError struct {
	RuleID string `json:"rule_id" yaml:"rule_id"`
	Reason string `json:"reason" yaml:"reason"`
	Cause  error  `json:"-" yaml:"-"`
}

// Error implements the error interface
func (e *RuleLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rule %q skipped: %s: %v", e.RuleID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("rule %q skipped: %s", e.RuleID, e.Reason)
}

// Unwrap returns the underlying cause
func (e *RuleLoadError) Unwrap() error {
	return e.Cause
}

// NewRuleLoadError creates a RuleLoadError
func NewRuleLoadError(ruleID, reason string, cause error) *RuleLoadError {
	return &RuleLoadError{RuleID: ruleID, Reason: reason, Cause: cause}
}

// validationFailed wraps ErrValidationFailed with a description
func validationFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
