// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"prose-scan/internal/version"

	// Import formatters to register them
	_ "prose-scan/internal/formatters/csv"
	_ "prose-scan/internal/formatters/json"
	_ "prose-scan/internal/formatters/junit"
	_ "prose-scan/internal/formatters/text"
	_ "prose-scan/internal/formatters/yaml"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitOK       = 0
	exitFindings = 1 // review items at or above --fail-on remain
	exitError    = 2
)

// codedError carries a process exit code through cobra's error return
type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var coded *codedError
	if errors.As(err, &coded) {
		if coded.msg != "" {
			fmt.Fprintln(os.Stderr, coded.msg)
		}
		return coded.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "prose-scan",
		Short: "Validate and repair translated prose",
		Long: `prose-scan finds overused phrases, repeated phrases close together and
stray foreign-script fragments in translated prose. Confident findings
are fixed automatically; the rest are queued for a human reviewer.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	opts.bind(rootCmd)

	rootCmd.AddCommand(
		validateCmd(opts),
		batchCmd(opts),
		rollbackCmd(opts),
		formatsCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
