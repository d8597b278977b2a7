// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"prose-scan/internal/core"
	"prose-scan/internal/extract"
	"prose-scan/internal/formatters"
	"prose-scan/internal/remediation"

	"github.com/spf13/cobra"
)

func validateCmd(opts *globalOptions) *cobra.Command {
	var sourcePath, fixedOut string

	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Validate one document, fix what is certain and queue the rest for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			in := core.Input{Name: args[0]}
			if in.Document, err = extract.File(args[0]); err != nil {
				return err
			}
			if sourcePath != "" {
				if in.SourceReference, err = extract.File(sourcePath); err != nil {
					return fmt.Errorf("source reference: %w", err)
				}
			}

			result, err := s.engine.Validate(cmd.Context(), in)
			if err != nil {
				s.collector.RecordFailure()
				return fmt.Errorf("validating %s: %w", args[0], err)
			}
			s.collector.Record(result)

			if fixedOut != "" {
				if err := writeFile(fixedOut, result.FixedDocument); err != nil {
					return err
				}
			}

			results := []*core.Result{result}
			if err := s.report(cmd, results); err != nil {
				return err
			}
			return s.gate(results)
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source", "", "Source-language original used to rate script leaks")
	cmd.Flags().StringVar(&fixedOut, "fixed-out", "", "Write the fixed document to this file")
	return cmd
}

func batchCmd(opts *globalOptions) *cobra.Command {
	var (
		recursive bool
		fixedDir  string
	)

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Validate many documents in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			log := s.observer.Component("main")

			paths, err := extract.Collect(args, recursive)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return &codedError{code: exitError, msg: "No supported documents found"}
			}

			inputs := make([]core.Input, 0, len(paths))
			for _, path := range paths {
				doc, err := extract.File(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: Skipping %s: %v\n", path, err)
					s.collector.RecordFailure()
					continue
				}
				inputs = append(inputs, core.Input{Name: path, Document: doc})
			}
			log.WithField("documents", len(inputs)).Info("batch started")

			var results []*core.Result
			failed := 0
			for _, br := range s.engine.ValidateBatch(cmd.Context(), inputs) {
				if br.Err != nil {
					failed++
					s.collector.RecordFailure()
					fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", br.Name, br.Err)
					continue
				}
				s.collector.Record(br.Result)
				results = append(results, br.Result)

				if fixedDir != "" {
					if err := writeFile(fixedPath(fixedDir, br.Name), br.Result.FixedDocument); err != nil {
						return err
					}
				}
			}
			log.WithField("documents", len(inputs)).WithField("failed", failed).Info("batch finished")

			if err := s.report(cmd, results); err != nil {
				return err
			}
			if failed > 0 && len(results) == 0 {
				return &codedError{code: exitError, msg: fmt.Sprintf("all %d documents failed", failed)}
			}
			return s.gate(results)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into directories")
	cmd.Flags().StringVar(&fixedDir, "fixed-dir", "", "Write each fixed document into this directory")
	return cmd
}

// fixedPath maps a document to its fixed copy, e.g. ch1.md -> dir/ch1.fixed.txt.
// Extracted PDF text is plain text, so every copy gets a .txt extension.
func fixedPath(dir, name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".fixed.txt")
}

func rollbackCmd(opts *globalOptions) *cobra.Command {
	var resultPath string

	cmd := &cobra.Command{
		Use:   "rollback <fixed-document>",
		Short: "Restore the original document from a fixed one and its JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixed, err := extract.File(args[0])
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

			original, err := remediation.Rollback(fixed, result.Fixes)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}

			if opts.output != "" {
				return writeFile(opts.output, original)
			}
			fmt.Fprint(cmd.OutOrStdout(), original)
			return nil
		},
	}

	cmd.Flags().StringVar(&resultPath, "result", "", "JSON result written by validate --format json")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List available output formats",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEXTENSION\tDESCRIPTION")
			for _, info := range formatters.GetSupportedFormats() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Extension, info.Description)
			}
			_ = w.Flush()
		},
	}
}
