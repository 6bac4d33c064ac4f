// Package doxygen wraps invocation of the external doxygen binary that
// extracts API documentation (XML) from C++ headers. The extractor is an
// interface so stage orchestration stays testable without doxygen on PATH.
package doxygen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/llnl/doxysite/internal/logfields"
)

var (
	// ErrBinaryNotFound indicates the doxygen executable was not detected on PATH.
	ErrBinaryNotFound = errors.New("doxygen binary not found")
	// ErrExecutionFailed indicates the doxygen command returned a non-zero exit status.
	ErrExecutionFailed = errors.New("doxygen execution failed")
	// ErrConfigMissing indicates the generated doxygen config was absent at run time.
	ErrConfigMissing = errors.New("doxygen config missing")
)

// Result captures one extractor run for reporting. It is populated even when
// the run fails so callers can persist the captured output alongside the error.
type Result struct {
	Binary   string        `json:"binary"`
	Config   string        `json:"config"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
}

// Extractor abstracts how API extraction is performed. BinaryExtractor invokes
// the real doxygen binary; NoopExtractor stands in for local prose-only builds
// and tests.
//
// Contract:
//
//	Extract(ctx, configPath, workDir) -> run extraction against the generated
//	  config from inside workDir; the returned Result is non-nil whenever the
//	  process actually started.
type Extractor interface {
	Extract(ctx context.Context, configPath, workDir string) (*Result, error)
}

// BinaryExtractor invokes the doxygen binary present on PATH.
type BinaryExtractor struct {
	// Binary overrides the executable name, defaulting to "doxygen".
	Binary string
}

func (b *BinaryExtractor) binary() string {
	if b.Binary != "" {
		return b.Binary
	}
	return "doxygen"
}

func (b *BinaryExtractor) Extract(ctx context.Context, configPath, workDir string) (*Result, error) {
	bin := b.binary()
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigMissing, configPath, err)
	}

	// #nosec G204 -- path comes from exec.LookPath, configPath from our own render step
	cmd := exec.CommandContext(ctx, path, configPath)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("BinaryExtractor invoking doxygen", logfields.Path(configPath), slog.String("dir", workDir))

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Binary:   bin,
		Config:   configPath,
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	// Doxygen writes progress to stdout and diagnostics to stderr; keep both
	// visible at debug level without deciding here whether they matter.
	if result.Stdout != "" {
		slog.Debug("doxygen stdout", slog.String("output", tail(result.Stdout, 2000)))
	}
	if result.Stderr != "" {
		slog.Debug("doxygen stderr", slog.String("output", tail(result.Stderr, 2000)))
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("doxygen canceled: %w", ctx.Err())
		}
		if result.Stderr != "" {
			return result, fmt.Errorf("%w: %w: %s", ErrExecutionFailed, runErr, tail(result.Stderr, 500))
		}
		return result, fmt.Errorf("%w: %w", ErrExecutionFailed, runErr)
	}
	return result, nil
}

// NoopExtractor performs no extraction; used when the build is not hosted or
// extraction is disabled.
type NoopExtractor struct{}

func (n *NoopExtractor) Extract(ctx context.Context, configPath, workDir string) (*Result, error) {
	slog.Debug("NoopExtractor skipping extraction", logfields.Path(configPath))
	return &Result{Binary: "noop", Config: configPath}, nil
}

// tail returns at most max bytes from the end of s, for log friendliness.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
