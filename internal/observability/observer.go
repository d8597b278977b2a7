// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// StandardObserver implements observability for all components.
// A nil *StandardObserver is valid and discards everything.
type StandardObserver struct {
	level  ObservabilityLevel
	logger *logrus.Logger
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// NewStandardObserver creates an observer writing JSON log lines to writer
func NewStandardObserver(level ObservabilityLevel, writer io.Writer) *StandardObserver {
	logger := logrus.New()
	logger.SetOutput(writer)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	switch level {
	case ObservabilityOff:
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.PanicLevel)
	case ObservabilityMetrics:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}

	return NewWithLogger(level, logger)
}

// NewWithLogger wraps an existing logrus logger
func NewWithLogger(level ObservabilityLevel, logger *logrus.Logger) *StandardObserver {
	return &StandardObserver{level: level, logger: logger}
}

// Level returns the configured level
func (o *StandardObserver) Level() ObservabilityLevel {
	if o == nil {
		return ObservabilityOff
	}
	return o.level
}

// Component returns a log entry tagged with the component name
func (o *StandardObserver) Component(component string) *logrus.Entry {
	if o == nil || o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		return logrus.NewEntry(discard)
	}
	return o.logger.WithField("component", component)
}

// StartTiming returns a function to complete timing. The finish callback logs
// one debug line with the duration and any metadata given to it.
func (o *StandardObserver) StartTiming(component, operation, target string) func(success bool, metadata map[string]interface{}) {
	if o == nil || o.level != ObservabilityDebug {
		return func(bool, map[string]interface{}) {}
	}
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			Target:     target,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// LogOperation logs operation data
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	fields := logrus.Fields{
		"operation":   data.Operation,
		"duration_ms": data.DurationMs,
		"success":     data.Success,
	}
	if data.Target != "" {
		fields["target"] = data.Target
	}
	if data.Error != "" {
		fields["error"] = data.Error
	}
	for k, v := range data.Metadata {
		fields[k] = v
	}

	o.Component(data.Component).WithFields(fields).Debug(data.Operation)
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Target     string                 `json:"target,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
