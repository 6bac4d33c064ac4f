package sphinx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/doxyfile"
	"github.com/llnl/doxysite/internal/doxygen"
	"github.com/llnl/doxysite/internal/hosted"
	"github.com/llnl/doxysite/internal/inputs"
	"github.com/llnl/doxysite/internal/metrics"
)

// Stage is a discrete unit of work in the site configuration build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildState carries mutable state and metrics across stages.
type BuildState struct {
	Generator  *Generator
	Hosted     hosted.Detection
	Settings   *Settings
	Inventory  *inputs.Inventory
	SourceRoot string // checkout path when a remote source was fetched
	Doxyfile   *doxyfile.RenderResult
	Extraction *doxygen.Result
	Report     *BuildReport
	Timings    map[StageName]time.Duration
	start      time.Time
}

// newBuildState constructs a BuildState.
func newBuildState(g *Generator, report *BuildReport) *BuildState {
	return &BuildState{
		Generator: g,
		Settings:  NewSettings(g.config),
		Report:    report,
		Timings:   make(map[StageName]time.Duration),
		start:     time.Now(),
	}
}

// ShouldExtract reports whether this build runs API extraction: always/never
// by explicit mode, hosted detection when automatic.
func (bs *BuildState) ShouldExtract() bool {
	switch bs.Generator.config.Build.ExtractMode {
	case config.ExtractModeAlways:
		return true
	case config.ExtractModeNever:
		return false
	default:
		return bs.Hosted.Hosted
	}
}

// Root is the directory all configured relative paths resolve against. A
// fetched checkout takes precedence over the generator's working root.
func (bs *BuildState) Root() string {
	if bs.SourceRoot != "" {
		return bs.SourceRoot
	}
	return bs.Generator.root
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled error. Warnings are collected and execution
// continues.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	rec := bs.Generator.recorder
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.Name, ctx.Err())
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			rec.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
		}
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.Timings[st.Name] = dur
		bs.Report.StageDurations[st.Name] = dur
		rec.ObserveStageDuration(string(st.Name), dur)
		if err == nil {
			sc := bs.Report.StageCounts[st.Name]
			sc.Success++
			bs.Report.StageCounts[st.Name] = sc
			rec.IncStageResult(string(st.Name), metrics.ResultSuccess)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Wrap unknown errors as fatal by default.
			se = newFatalStageError(st.Name, err)
		}
		bs.Report.StageErrorKinds[st.Name] = se.Kind
		sc := bs.Report.StageCounts[st.Name]
		switch se.Kind {
		case StageErrorWarning:
			sc.Warning++
		case StageErrorCanceled:
			sc.Canceled++
		default:
			sc.Fatal++
		}
		bs.Report.StageCounts[st.Name] = sc

		switch se.Kind {
		case StageErrorWarning:
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			rec.IncStageResult(string(st.Name), metrics.ResultWarning)
			continue
		case StageErrorCanceled:
			bs.Report.Errors = append(bs.Report.Errors, se)
			rec.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
			bs.Report.Errors = append(bs.Report.Errors, se)
			rec.IncStageResult(string(st.Name), metrics.ResultFatal)
			return se
		}
	}
	return nil
}
