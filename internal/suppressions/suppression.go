// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package suppressions stores findings a reviewer has accepted so later runs
// over the same prose do not report them again.
package suppressions

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"prose-scan/internal/detector"

	"gopkg.in/yaml.v3"
)

// ContextRunes is how many runes either side of a finding feed its hash
const ContextRunes = 24

// DefaultExpiry applies to rules added without an explicit expiry
const DefaultExpiry = 90 * 24 * time.Hour

// SuppressionRule represents a single suppression rule
type SuppressionRule struct {
	ID         string            `yaml:"id"`
	Hash       string            `yaml:"hash"`
	Reason     string            `yaml:"reason"`
	Enabled    bool              `yaml:"enabled"`
	CreatedBy  string            `yaml:"created_by,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at"`
	ExpiresAt  *time.Time        `yaml:"expires_at,omitempty"`
	ReviewedBy string            `yaml:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `yaml:"reviewed_at,omitempty"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// SuppressionConfig represents the suppression file
type SuppressionConfig struct {
	Version string            `yaml:"version"`
	Rules   []SuppressionRule `yaml:"rules"`
}

// SuppressionManager handles finding suppressions. It is safe for concurrent
// use; IsSuppressed may be called from many validation runs at once.
type SuppressionManager struct {
	mu         sync.RWMutex
	configPath string
	config     *SuppressionConfig
	enabled    bool
	loadErr    error
	now        func() time.Time
}

// NewSuppressionManager loads the suppression file at configPath. A missing
// file yields an empty rule set; an empty path keeps rules in memory only.
// A file that cannot be read or parsed also yields an empty rule set, with
// the cause reported by LoadError.
func NewSuppressionManager(configPath string) *SuppressionManager {
	manager := &SuppressionManager{
		configPath: configPath,
		enabled:    true,
		now:        time.Now,
	}
	manager.loadConfig()
	return manager
}

func emptyConfig() *SuppressionConfig {
	return &SuppressionConfig{Version: "1.0", Rules: []SuppressionRule{}}
}

func (sm *SuppressionManager) loadConfig() {
	sm.config = emptyConfig()
	if sm.configPath == "" {
		return
	}

	data, err := os.ReadFile(filepath.Clean(sm.configPath))
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		sm.loadErr = fmt.Errorf("failed to read suppression file %s: %w", sm.configPath, err)
		return
	}

	var config SuppressionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		sm.loadErr = fmt.Errorf("failed to parse suppression file %s: %w", sm.configPath, err)
		return
	}
	sm.config = &config
}

// LoadError returns why the suppression file could not be loaded, or nil
func (sm *SuppressionManager) LoadError() error {
	return sm.loadErr
}

// FindingHash identifies a finding by its detector, its text and the prose
// around it. Offsets are left out so edits elsewhere in the document keep
// the hash stable.
func FindingHash(finding detector.Finding, document string) string {
	before, after := surrounding(document, finding.Span, ContextRunes)
	components := []string{
		finding.DetectorID,
		string(finding.Kind),
		hashText(finding.MatchedText),
		hashText(normalizeSpace(before) + "\x00" + normalizeSpace(after)),
	}
	hash := sha256.Sum256([]byte(strings.Join(components, "|")))
	return fmt.Sprintf("%x", hash)
}

// surrounding returns up to n runes of text either side of span
func surrounding(document string, span detector.Span, n int) (string, string) {
	if span.Start < 0 || span.End > len(document) || span.Start > span.End {
		return "", ""
	}

	start := span.Start
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(document[:start])
		start -= size
	}
	end := span.End
	for i := 0; i < n && end < len(document); i++ {
		_, size := utf8.DecodeRuneInString(document[end:])
		end += size
	}
	return document[start:span.Start], document[span.End:end]
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hashText(data string) string {
	if data == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)[:16]
}

// IsSuppressed reports whether an enabled, unexpired rule matches the
// finding, and returns that rule's id
func (sm *SuppressionManager) IsSuppressed(finding detector.Finding, document string) (bool, string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.enabled || sm.config == nil {
		return false, ""
	}

	rule := sm.activeRule(FindingHash(finding, document))
	if rule == nil {
		return false, ""
	}
	return true, rule.ID
}

func (sm *SuppressionManager) activeRule(hash string) *SuppressionRule {
	now := sm.now()
	for i := range sm.config.Rules {
		rule := &sm.config.Rules[i]
		if rule.Hash != hash || !rule.Enabled {
			continue
		}
		if rule.ExpiresAt != nil && now.After(*rule.ExpiresAt) {
			continue
		}
		return rule
	}
	return nil
}

// AddSuppression accepts a finding and saves the file
func (sm *SuppressionManager) AddSuppression(finding detector.Finding, document, reason, createdBy string, expiresAt *time.Time) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.add(finding, document, reason, createdBy, expiresAt, true); err != nil {
		return err
	}
	return sm.saveConfig()
}

func (sm *SuppressionManager) add(finding detector.Finding, document, reason, createdBy string, expiresAt *time.Time, enabled bool) error {
	hash := FindingHash(finding, document)
	for _, rule := range sm.config.Rules {
		if rule.Hash == hash {
			return fmt.Errorf("suppression rule already exists for finding %s", finding.ID)
		}
	}

	now := sm.now()
	if expiresAt == nil {
		expiry := now.Add(DefaultExpiry)
		expiresAt = &expiry
	}

	before, after := surrounding(document, finding.Span, ContextRunes)
	sm.config.Rules = append(sm.config.Rules, SuppressionRule{
		ID:        sm.nextID(),
		Hash:      hash,
		Reason:    reason,
		Enabled:   enabled,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Metadata: map[string]string{
			"detector_id":     finding.DetectorID,
			"kind":            string(finding.Kind),
			"category":        finding.Category,
			"severity":        finding.Severity.String(),
			"matched_text":    finding.MatchedText,
			"context_hash":    hashText(normalizeSpace(before) + "\x00" + normalizeSpace(after)),
			"match_text_hash": hashText(finding.MatchedText),
		},
	})
	return nil
}

func (sm *SuppressionManager) nextID() string {
	maxID := 0
	for _, existing := range sm.config.Rules {
		var num int
		if _, err := fmt.Sscanf(existing.ID, "SUP-%08d", &num); err == nil && num > maxID {
			maxID = num
		}
	}
	return fmt.Sprintf("SUP-%08d", maxID+1)
}

// GenerateSuppressionRules records a rule for every finding not already
// covered. Rules generated disabled wait for a reviewer to enable them.
// It returns the number of rules added.
func (sm *SuppressionManager) GenerateSuppressionRules(findings []detector.Finding, document, reason string, enabled bool) (int, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	added := 0
	for _, f := range findings {
		if err := sm.add(f, document, reason, "", nil, enabled); err != nil {
			continue
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, sm.saveConfig()
}

// EnableSuppressionByHash enables a generated rule after review
func (sm *SuppressionManager) EnableSuppressionByHash(hash, reason, reviewer string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := range sm.config.Rules {
		rule := &sm.config.Rules[i]
		if rule.Hash != hash {
			continue
		}
		now := sm.now()
		rule.Enabled = true
		if reason != "" {
			rule.Reason = reason
		}
		if reviewer != "" {
			rule.ReviewedBy = reviewer
			rule.ReviewedAt = &now
		}
		return sm.saveConfig()
	}
	return fmt.Errorf("no suppression rule with hash %s", hash)
}

// RemoveSuppression removes a suppression rule by ID
func (sm *SuppressionManager) RemoveSuppression(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i, rule := range sm.config.Rules {
		if rule.ID == id {
			sm.config.Rules = append(sm.config.Rules[:i], sm.config.Rules[i+1:]...)
			return sm.saveConfig()
		}
	}
	return fmt.Errorf("suppression rule with ID %s not found", id)
}

// ListSuppressions returns a copy of all suppression rules
func (sm *SuppressionManager) ListSuppressions() []SuppressionRule {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]SuppressionRule{}, sm.config.Rules...)
}

// CleanupExpired removes expired suppression rules and returns how many went
func (sm *SuppressionManager) CleanupExpired() (int, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	active := sm.config.Rules[:0]
	for _, rule := range sm.config.Rules {
		if rule.ExpiresAt == nil || now.Before(*rule.ExpiresAt) {
			active = append(active, rule)
		}
	}
	removed := len(sm.config.Rules) - len(active)
	sm.config.Rules = active

	if removed == 0 {
		return 0, nil
	}
	return removed, sm.saveConfig()
}

// SetEnabled turns suppression checks on or off
func (sm *SuppressionManager) SetEnabled(enabled bool) {
	sm.mu.Lock()
	sm.enabled = enabled
	sm.mu.Unlock()
}

// IsEnabled reports whether suppression checks are on
func (sm *SuppressionManager) IsEnabled() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.enabled
}

// GetConfigPath returns the suppression file path
func (sm *SuppressionManager) GetConfigPath() string {
	return sm.configPath
}

// saveConfig writes the rules back to disk; callers hold the write lock
func (sm *SuppressionManager) saveConfig() error {
	if sm.configPath == "" {
		return nil
	}
	if sm.loadErr != nil {
		return fmt.Errorf("not overwriting unloaded suppression file: %w", sm.loadErr)
	}

	data, err := yaml.Marshal(sm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal suppression config: %w", err)
	}

	if dir := filepath.Dir(sm.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(sm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write suppression config: %w", err)
	}
	return nil
}
