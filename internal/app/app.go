// Package app wires the tip command line: flags, logging, output, and exit
// codes. All verification logic lives in the internal packages it calls.
package app

import (
	"encoding/json"
	"fmt"
	stdlog "log"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aonescu/tip/internal/formatting"
	"github.com/aonescu/tip/internal/loader"
	"github.com/aonescu/tip/internal/prover"
	"github.com/aonescu/tip/internal/types"
)

const helpOutput = "Statically verifies that no Kubernetes namespace can reach another tenant's pods or escalate privileges via RBAC, emitting a reproducible proof or concrete counterexamples."

// ExitError conveys a specific process exit code through cobra: 1 when
// verification failed, 2 when it passed with warnings under
// --fail-on-warnings.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Options are the tip flag options.
type Options struct {
	Manifests      []string
	Policies       []string
	Indent         int
	FailOnWarnings bool
	Explain        bool
	Debug          bool
}

// NewCommand returns the root tip command.
func NewCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "tip",
		Short:         "Tenant Isolation Prover",
		Long:          helpOutput,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringSliceVar(&opts.Manifests, "manifests", nil,
		"Manifest files, directories, or globs (.yaml/.yml/.json).")
	fs.StringSliceVar(&opts.Policies, "policies", nil,
		"Policy files, directories, or globs (.yaml/.yml/.json/.rego); Rego modules are loaded as opaque text.")
	fs.IntVar(&opts.Indent, "indent", 2,
		"Number of spaces used to indent the JSON output.")
	fs.BoolVar(&opts.FailOnWarnings, "fail-on-warnings", false,
		"Exit with code 2 when verification passes but warnings are present.")
	fs.BoolVar(&opts.Explain, "explain", false,
		"Write a human-readable report to stderr in addition to the JSON result.")
	fs.BoolVar(&opts.Debug, "debug", false,
		"Enable debug logging.")
	_ = cmd.MarkFlagRequired("manifests")

	return cmd
}

func run(cmd *cobra.Command, opts *Options) error {
	log := setupLogger(opts.Debug)
	defer log.Sync() //nolint:errcheck

	ld := loader.New(log)
	docs, err := ld.Manifests(opts.Manifests)
	if err != nil {
		return err
	}
	var policies []types.PolicyDocument
	if len(opts.Policies) > 0 {
		policies, err = ld.Policies(opts.Policies)
		if err != nil {
			return err
		}
	}

	result := prover.New(log, docs, policies).Prove()

	out, err := renderJSON(result, opts.Indent)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if opts.Explain {
		fmt.Fprint(cmd.ErrOrStderr(), formatting.FormatReport(result))
	}

	return exitStatus(result, opts.FailOnWarnings)
}

// exitStatus maps a result to the documented exit codes; nil means 0.
func exitStatus(result *types.TipResult, failOnWarnings bool) error {
	if result.Status == types.StatusFailed {
		return &ExitError{Code: 1}
	}
	if failOnWarnings && len(result.Warnings) > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}

// renderJSON emits the result with keys sorted at every depth, matching the
// proof canonicalization rules so output and digest agree on shape.
func renderJSON(result *types.TipResult, indent int) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	var normalized any
	if err := json.Unmarshal(b, &normalized); err != nil {
		return "", err
	}
	if indent <= 0 {
		b, err = json.Marshal(normalized)
		return string(b), err
	}
	b, err = json.MarshalIndent(normalized, "", strings.Repeat(" ", indent))
	return string(b), err
}

func setupLogger(debug bool) *zap.SugaredLogger {
	var zlog *zap.Logger
	var err error
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return zlog.Sugar()
}
