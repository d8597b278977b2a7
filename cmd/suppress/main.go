// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/extract"
	"prose-scan/internal/suppressions"

	"github.com/spf13/cobra"
)

var suppressionFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "prose-suppress",
		Short:        "Manage reviewer-accepted findings",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&suppressionFile, "suppression-file", ".prose-scan-suppressions.yaml", "Path to the suppression file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(listCmd(), removeCmd(), cleanupCmd(), enableCmd(), acceptCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openManager loads --suppression-file, failing when it exists but cannot
// be read or parsed
func openManager() (*suppressions.SuppressionManager, error) {
	manager := suppressions.NewSuppressionManager(suppressionFile)
	if err := manager.LoadError(); err != nil {
		return nil, err
	}
	return manager, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List suppression rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			rules := manager.ListSuppressions()
			if len(rules) == 0 {
				fmt.Println("No suppression rules found.")
				return nil
			}

			fmt.Printf("Found %d suppression rules:\n\n", len(rules))
			for _, rule := range rules {
				fmt.Printf("ID: %s\n", rule.ID)
				fmt.Printf("Hash: %s\n", rule.Hash)
				fmt.Printf("Enabled: %v\n", rule.Enabled)
				fmt.Printf("Reason: %s\n", rule.Reason)
				if rule.CreatedBy != "" {
					fmt.Printf("Created By: %s\n", rule.CreatedBy)
				}
				fmt.Printf("Created At: %s\n", rule.CreatedAt.Format("2006-01-02 15:04:05"))
				if rule.ExpiresAt != nil {
					fmt.Printf("Expires At: %s\n", rule.ExpiresAt.Format("2006-01-02 15:04:05"))
				}
				if len(rule.Metadata) > 0 {
					fmt.Println("Metadata:")
					keys := make([]string, 0, len(rule.Metadata))
					for k := range rule.Metadata {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						fmt.Printf("  %s: %s\n", k, rule.Metadata[k])
					}
				}
				fmt.Println("---")
			}
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a suppression rule by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			if err := manager.RemoveSuppression(id); err != nil {
				return fmt.Errorf("removing suppression: %w", err)
			}
			fmt.Printf("Successfully removed suppression rule: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Suppression rule ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired suppression rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			removed, err := manager.CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Printf("Cleaned up %d expired suppression rules\n", removed)
			return nil
		},
	}
}

func enableCmd() *cobra.Command {
	var hash, reason, reviewer string
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable a generated suppression rule after review",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			if err := manager.EnableSuppressionByHash(hash, reason, reviewer); err != nil {
				return fmt.Errorf("enabling suppression: %w", err)
			}
			fmt.Printf("Successfully enabled suppression for hash: %.8s\n", hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "Finding hash")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for suppression")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Name of the reviewer")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

// acceptCmd turns the review queue of a saved JSON result into suppression
// rules. The document must be the one the result was produced from.
func acceptCmd() *cobra.Command {
	var (
		resultPath string
		reason     string
		findingIDs []string
		enabled    bool
	)
	cmd := &cobra.Command{
		Use:   "accept <document>",
		Short: "Generate suppression rules from a JSON validation result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := extract.File(args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Clean(resultPath))
			if err != nil {
				return fmt.Errorf("reading result: %w", err)
			}
			var result core.Result
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("parsing result: %w", err)
			}

			selected := selectFindings(&result, findingIDs)
			if len(selected) == 0 {
				fmt.Println("No findings selected.")
				return nil
			}

			manager, err := openManager()
			if err != nil {
				return err
			}
			added, err := manager.GenerateSuppressionRules(selected, document, reason, enabled)
			if err != nil {
				return err
			}
			fmt.Printf("Added %d suppression rules (%d already present)\n", added, len(selected)-added)
			return nil
		},
	}
	cmd.Flags().StringVar(&resultPath, "result", "", "JSON result written by prose-scan validate --format json")
	cmd.Flags().StringVar(&reason, "reason", "accepted in review", "Reason recorded on each rule")
	cmd.Flags().StringSliceVar(&findingIDs, "finding", nil, "Finding ids to accept (default: whole review queue)")
	cmd.Flags().BoolVar(&enabled, "enable", false, "Enable the rules immediately instead of waiting for review")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func selectFindings(result *core.Result, ids []string) []detector.Finding {
	want := make(map[string]bool)
	if len(ids) == 0 {
		for _, item := range result.ReviewQueue {
			want[item.FindingID] = true
		}
	}
	for _, id := range ids {
		want[id] = true
	}

	var out []detector.Finding
	for _, f := range result.Findings {
		if want[f.ID] {
			out = append(out, f)
		}
	}
	return out
}
