// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"prose-scan/internal/auxiliary"
	"prose-scan/internal/config"
	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/formatters"
	"prose-scan/internal/library"
	"prose-scan/internal/metrics"
	"prose-scan/internal/observability"
	"prose-scan/internal/suppressions"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configFile      string
	envFile         string
	libraryPath     string
	format          string
	output          string
	priorities      string
	suppressionFile string
	metricsFile     string
	profile         string
	detectors       string
	failOn          string
	workers         int
	noColor         bool
	verbose         bool
	debug           bool
	quiet           bool
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "Path to configuration file (default: search standard locations)")
	f.StringVar(&o.envFile, "env-file", ".env", "Load environment overrides from this file if it exists")
	f.StringVarP(&o.libraryPath, "library", "l", "", "Path to the pattern library (default from config)")
	f.StringVarP(&o.format, "format", "f", "", "Output format: "+strings.Join(formatters.List(), ", "))
	f.StringVarP(&o.output, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringVar(&o.priorities, "priorities", "", "Review priorities to show: all or a list of critical,high,medium,low")
	f.StringVar(&o.suppressionFile, "suppression-file", "", "Suppression file of accepted findings")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	f.StringVar(&o.profile, "profile", "", "Script profile: base-target, e.g. zh-ja")
	f.StringVar(&o.detectors, "detectors", "", "Detectors to run: all or a list of pattern,echo,leak")
	f.StringVar(&o.failOn, "fail-on", "", "Exit with status 1 when review items at or above this priority remain")
	f.IntVar(&o.workers, "workers", 0, "Documents validated in parallel (default from config)")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Include applied fixes, suppressed findings and skipped rules")
	f.BoolVar(&o.debug, "debug", false, "Log every stage as JSON to stderr")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Suppress log output")
}

// loadConfig resolves the configuration file and applies flag overrides.
// Flags win over the environment, which wins over the file.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}

	path := o.configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("library") {
		cfg.Library.Path = o.libraryPath
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("priorities") {
		cfg.Output.Priorities = o.priorities
	}
	if flags.Changed("suppression-file") {
		cfg.Suppressions.Path = o.suppressionFile
	}
	if flags.Changed("profile") {
		cfg.Scripts.Profile = o.profile
	}
	if flags.Changed("detectors") {
		cfg.Engine.Detectors = o.detectors
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = o.workers
	}
	if o.noColor {
		cfg.Output.NoColor = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, ok := formatters.Get(cfg.Output.Format); !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", cfg.Output.Format, strings.Join(formatters.List(), ", "))
	}
	return cfg, nil
}

func (o *globalOptions) observer() *observability.StandardObserver {
	switch {
	case o.quiet:
		return observability.NewStandardObserver(observability.ObservabilityOff, io.Discard)
	case o.debug:
		return observability.NewStandardObserver(observability.ObservabilityDebug, os.Stderr)
	default:
		return observability.NewStandardObserver(observability.ObservabilityMetrics, os.Stderr)
	}
}

// session is everything a subcommand needs to validate documents
type session struct {
	opts      *globalOptions
	cfg       *config.Config
	engine    *core.Engine
	observer  *observability.StandardObserver
	collector *metrics.Collector
}

func newSession(cmd *cobra.Command, opts *globalOptions) (*session, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	observer := opts.observer()
	log := observer.Component("main")

	lib, err := library.LoadFile(cfg.Library.Path)
	if err != nil {
		return nil, err
	}
	log.WithField("rules", lib.Len()).WithField("path", cfg.Library.Path).Info("pattern library loaded")

	engineOpts := cfg.EngineOptions()
	engineOpts.Observer = observer
	if cfg.Auxiliary.Enabled {
		token := ""
		if cfg.Auxiliary.TokenEnv != "" {
			token = os.Getenv(cfg.Auxiliary.TokenEnv)
		}
		engineOpts.Auxiliary = auxiliary.NewHTTPSignal(cfg.Auxiliary.URL, token, cfg.Auxiliary.Timeout)
		log.WithField("url", cfg.Auxiliary.URL).Info("auxiliary signal enabled")
	}
	if cfg.Suppressions.Path != "" {
		sm := suppressions.NewSuppressionManager(cfg.Suppressions.Path)
		if err := sm.LoadError(); err != nil {
			return nil, err
		}
		engineOpts.Suppressor = sm
		log.WithField("rules", len(sm.ListSuppressions())).Debug("suppressions loaded")
	}

	engine, err := core.NewEngine(lib, engineOpts)
	if err != nil {
		return nil, err
	}

	return &session{
		opts:      opts,
		cfg:       cfg,
		engine:    engine,
		observer:  observer,
		collector: metrics.NewCollector(),
	}, nil
}

// report renders results and writes them to --output or stdout
func (s *session) report(cmd *cobra.Command, results []*core.Result) error {
	toFile := s.opts.output != ""
	noColor := s.cfg.Output.NoColor || toFile || !isTerminal(os.Stdout)
	if noColor {
		color.NoColor = true
	}

	out, err := formatters.Export(s.cfg.Output.Format, results, formatters.FormatterOptions{
		Priorities: core.ParsePriorities(s.cfg.Output.Priorities),
		Verbose:    s.opts.verbose,
		NoColor:    noColor,
	})
	if err != nil {
		return err
	}

	if toFile {
		if err := writeFile(s.opts.output, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", s.opts.output)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), out)
	}

	if s.opts.metricsFile != "" {
		if err := s.collector.WriteTextfile(s.opts.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

// gate turns remaining review items into an exit status
func (s *session) gate(results []*core.Result) error {
	threshold, enabled, err := parseFailOn(s.opts.failOn)
	if err != nil || !enabled {
		return err
	}

	count := 0
	for _, r := range results {
		for _, item := range r.ReviewQueue {
			if item.Priority >= threshold {
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	return &codedError{
		code: exitFindings,
		msg:  fmt.Sprintf("%d review items at or above %s priority", count, threshold),
	}
}

func parseFailOn(value string) (detector.Priority, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "none" {
		return 0, false, nil
	}
	var p detector.Priority
	if err := p.UnmarshalText([]byte(value)); err != nil {
		return 0, false, fmt.Errorf("--fail-on: %w", err)
	}
	return p, true, nil
}

func writeFile(path, content string) error {
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("error creating directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(clean, []byte(content), 0600); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

// isTerminal checks if the given file is a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
