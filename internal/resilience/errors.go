// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType says how a failed auxiliary call should be handled
type ErrorType int

const (
	ErrorTypeUnknown     ErrorType = iota
	ErrorTypeTransient             // connection resets, refused connections
	ErrorTypeTimeout               // the call ran past its deadline
	ErrorTypeRateLimit             // the signal provider asked us to slow down
	ErrorTypeUnavailable           // provider is down or overloaded
	ErrorTypePermanent             // bad input, auth failures, anything not worth retrying
	ErrorTypeCanceled              // the caller gave up
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeRateLimit:
		return "RateLimit"
	case ErrorTypeUnavailable:
		return "Unavailable"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes an error for appropriate handling
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, context.Canceled):
		return classify(err, ErrorTypeCanceled, false)
	case errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err):
		return classify(err, ErrorTypeTimeout, true)
	case isNetworkError(err):
		return classify(err, ErrorTypeTransient, true)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return classify(err, ErrorTypeRateLimit, true)
	case strings.Contains(msg, "service unavailable") || strings.Contains(msg, "overloaded"):
		return classify(err, ErrorTypeUnavailable, true)
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid") || strings.Contains(msg, "bad request"):
		return classify(err, ErrorTypePermanent, false)
	}

	return classify(err, ErrorTypeUnknown, false)
}

func classify(err error, t ErrorType, retryable bool) *ClassifiedError {
	return &ClassifiedError{
		Original:  err,
		Type:      t,
		Message:   fmt.Sprintf("%s error: %v", strings.ToLower(t.String()), err),
		Retryable: retryable,
	}
}

// isNetworkError checks if an error is network-related
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}
