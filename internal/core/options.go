// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"strings"
	"time"

	"prose-scan/internal/detector"
	"prose-scan/internal/leak"
	"prose-scan/internal/observability"
	"prose-scan/internal/scoring"
)

// Suppressor hides findings a reviewer has already accepted
type Suppressor interface {
	IsSuppressed(finding detector.Finding, document string) (bool, string)
}

// Options holds every engine setting. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	FixThreshold        float64
	LeakMinConfidence   float64
	LeakWeights         leak.Weights
	EchoConfidenceBoost float64

	LeakContextWindow    int
	UseSourceReference   bool
	SourceAbsentFactor   float64
	LeakSequenceSeverity detector.Severity

	// ScriptProfile names a built-in charset; Charset overrides it when set
	ScriptProfile string
	Charset       *leak.Charset

	// Kinds enables detectors; a nil map enables all of them
	Kinds map[detector.Kind]bool

	Auxiliary        scoring.AuxiliarySignal
	AuxiliaryWeight  float64
	AuxiliaryTimeout time.Duration
	AuxiliaryRetries int

	// Workers bounds ValidateBatch concurrency
	Workers int

	Suppressor Suppressor
	Observer   *observability.StandardObserver
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		FixThreshold:         0.9,
		LeakMinConfidence:    0.7,
		LeakWeights:          leak.DefaultWeights(),
		EchoConfidenceBoost:  0.1,
		LeakContextWindow:    4,
		UseSourceReference:   true,
		SourceAbsentFactor:   0.5,
		LeakSequenceSeverity: detector.SeverityCritical,
		ScriptProfile:        "zh-ja",
		AuxiliaryWeight:      0.2,
		AuxiliaryTimeout:     2 * time.Second,
		AuxiliaryRetries:     1,
		Workers:              4,
	}
}

// Validate checks ranges that the individual stages would otherwise reject
// one by one
func (o Options) Validate() error {
	if o.FixThreshold < 0 || o.FixThreshold > 1 {
		return fmt.Errorf("fix_threshold %v outside [0,1]", o.FixThreshold)
	}
	if o.EchoConfidenceBoost < 0 {
		return fmt.Errorf("echo_confidence_boost must not be negative, got %v", o.EchoConfidenceBoost)
	}
	if o.AuxiliaryWeight < 0 || o.AuxiliaryWeight > 1 {
		return fmt.Errorf("auxiliary weight %v outside [0,1]", o.AuxiliaryWeight)
	}
	if !o.LeakSequenceSeverity.Valid() {
		return fmt.Errorf("leak sequence severity is not set")
	}
	return o.leakOptions().Validate()
}

func (o Options) leakOptions() leak.Options {
	return leak.Options{
		Weights:            o.LeakWeights,
		MinConfidence:      o.LeakMinConfidence,
		ContextWindow:      o.LeakContextWindow,
		SourceAbsentFactor: o.SourceAbsentFactor,
	}
}

func (o Options) enabled(kind detector.Kind) bool {
	return o.Kinds == nil || o.Kinds[kind]
}

// ParseKinds converts detector names into an enabled-kinds map.
// An empty slice or ["all"] enables every kind; unknown names are ignored.
// Echo detection runs on pattern matches, so enabling echo enables pattern.
func ParseKinds(kinds []string) map[detector.Kind]bool {
	result := make(map[detector.Kind]bool, len(detector.Kinds))
	for _, k := range detector.Kinds {
		result[k] = false
	}

	if len(kinds) == 0 || (len(kinds) == 1 && strings.TrimSpace(kinds[0]) == "all") {
		for k := range result {
			result[k] = true
		}
		return result
	}

	for _, name := range kinds {
		k := detector.Kind(strings.ToLower(strings.TrimSpace(name)))
		if _, exists := result[k]; exists {
			result[k] = true
		}
	}
	if result[detector.KindEcho] {
		result[detector.KindPattern] = true
	}
	return result
}

// ParsePriorities converts a comma-separated priority list into a map.
// "all" or an empty string enables every priority.
func ParsePriorities(levels string) map[detector.Priority]bool {
	all := []detector.Priority{detector.PriorityLow, detector.PriorityMedium, detector.PriorityHigh, detector.PriorityCritical}
	result := make(map[detector.Priority]bool, len(all))
	for _, p := range all {
		result[p] = false
	}

	if levels == "" || strings.TrimSpace(levels) == "all" {
		for _, p := range all {
			result[p] = true
		}
		return result
	}

	for _, level := range strings.Split(levels, ",") {
		var p detector.Priority
		if err := p.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
			result[p] = true
		}
	}
	return result
}
