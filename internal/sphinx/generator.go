// Package sphinx generates the Sphinx site configuration for a C++ project:
// it renders the doxygen config from its template, drives API extraction on
// hosted builds, and emits a conf.py wiring the extracted XML into breathe.
package sphinx

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/doxygen"
	"github.com/llnl/doxysite/internal/hosted"
	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/metrics"
)

// Generator orchestrates the configuration build pipeline.
type Generator struct {
	config    *config.Config
	root      string // working root, usually the directory doxysite runs in
	extractor doxygen.Extractor
	recorder  metrics.Recorder
}

// NewGenerator creates a generator rooted at root. Relative config paths
// resolve against root via the site source dir.
func NewGenerator(cfg *config.Config, root string) *Generator {
	return &Generator{
		config:    cfg,
		root:      filepath.Clean(root),
		extractor: &doxygen.BinaryExtractor{Binary: cfg.Doxygen.Binary},
		recorder:  metrics.NoopRecorder{},
	}
}

// WithExtractor allows tests or callers to inject a custom extractor.
func (g *Generator) WithExtractor(e doxygen.Extractor) *Generator {
	if e != nil {
		g.extractor = e
	}
	return g
}

// SetRecorder injects a metrics recorder (optional). Returns the generator
// for chaining.
func (g *Generator) SetRecorder(r metrics.Recorder) *Generator {
	if r == nil {
		g.recorder = metrics.NoopRecorder{}
		return g
	}
	g.recorder = r
	return g
}

// Config exposes the underlying configuration.
func (g *Generator) Config() *config.Config { return g.config }

// Build runs the full pipeline: prepare, fetch, discover, render the doxygen
// config, extract, register breathe projects, write conf.py. Returns the
// build report on success or warning; fatal and canceled errors return nil.
func (g *Generator) Build(ctx context.Context) (*BuildReport, error) {
	detection := hosted.Detect(g.config.Hosted)
	slog.Info("Starting configuration build",
		logfields.Project(g.config.Site.Project),
		slog.Bool("hosted", detection.Hosted),
		logfields.Provider(detection.Provider))

	report := newBuildReport(g.config.Site.Project)
	report.Hosted = detection.Hosted
	report.HostedVar = detection.Provider

	bs := newBuildState(g, report)
	bs.Hosted = detection

	stages := NewPipeline().
		Add(StagePrepareOutput, stagePrepareOutput).
		AddIf(g.config.Source != nil, StageFetchSource, stageFetchSource).
		Add(StageDiscoverInputs, stageDiscoverInputs).
		Add(StageRenderDoxyfile, stageRenderDoxyfile).
		Add(StageRunDoxygen, stageRunDoxygen).
		Add(StageRegisterProjects, stageRegisterProjects).
		Add(StageWriteConf, stageWriteConf).
		Add(StagePostProcess, stagePostProcess).
		Build()

	if err := runStages(ctx, bs, stages); err != nil {
		return nil, err
	}

	report.deriveOutcome()
	report.finish()
	g.finalize(bs, report)
	return report, nil
}

// Configure runs the config-only pipeline: no source fetch, no extraction.
// On a hosted branch it still renders the Doxyfile and registers the breathe
// mapping, so a later extractor run finds everything in place; locally it
// reduces to regenerating conf.py.
func (g *Generator) Configure(ctx context.Context) (*BuildReport, error) {
	detection := hosted.Detect(g.config.Hosted)
	slog.Info("Writing configuration only", logfields.Project(g.config.Site.Project))

	report := newBuildReport(g.config.Site.Project)
	report.Hosted = detection.Hosted
	report.HostedVar = detection.Provider

	bs := newBuildState(g, report)
	bs.Hosted = detection

	stages := NewPipeline().
		Add(StagePrepareOutput, stagePrepareOutput).
		Add(StageDiscoverInputs, stageDiscoverInputs).
		Add(StageRenderDoxyfile, stageRenderDoxyfile).
		Add(StageRegisterProjects, stageRegisterProjects).
		Add(StageWriteConf, stageWriteConf).
		Build()

	if err := runStages(ctx, bs, stages); err != nil {
		return nil, err
	}

	report.deriveOutcome()
	report.finish()
	g.finalize(bs, report)
	return report, nil
}

// finalize persists the report and records build-level metrics.
func (g *Generator) finalize(bs *BuildState, report *BuildReport) {
	if err := report.Persist(bs.sitePath(g.config.Output.Directory)); err != nil {
		slog.Warn("Failed to persist build report", logfields.Error(err))
	}
	g.recorder.ObserveBuildDuration(report.End.Sub(report.Start))
	g.recorder.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
	slog.Info("Configuration build completed",
		logfields.Project(report.Project),
		slog.Int("headers", report.Headers),
		slog.Int("pages", report.Pages),
		slog.String("outcome", report.Outcome))
}
