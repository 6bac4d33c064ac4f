package sphinx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/llnl/doxysite/internal/doxyfile"
	"github.com/llnl/doxysite/internal/doxygen"
	"github.com/llnl/doxysite/internal/gitfetch"
	"github.com/llnl/doxysite/internal/inputs"
	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/workspace"
)

// sitePath resolves a path relative to the site source dir (the directory
// conf.py lives in), which is itself relative to the build root. This matches
// how a hand-maintained conf.py resolves "../Doxyfile.in" style paths.
func (bs *BuildState) sitePath(rel string) string {
	return filepath.Clean(filepath.Join(bs.Root(), bs.Generator.config.Site.SourceDir, rel))
}

// siteDir is the resolved conf.py directory.
func (bs *BuildState) siteDir() string {
	return filepath.Clean(filepath.Join(bs.Root(), bs.Generator.config.Site.SourceDir))
}

// stagePrepareOutput ensures the report output directory exists.
func stagePrepareOutput(ctx context.Context, bs *BuildState) error {
	out := bs.sitePath(bs.Generator.config.Output.Directory)
	if err := os.MkdirAll(out, 0755); err != nil {
		return newFatalStageError(StagePrepareOutput, fmt.Errorf("create output dir: %w", err))
	}
	return nil
}

// stageFetchSource materializes the configured remote source. Fetch failure
// is a warning: prose-only artifacts can still be produced from nothing, and
// the report makes the gap visible.
func stageFetchSource(ctx context.Context, bs *BuildState) error {
	src := bs.Generator.config.Source
	if src == nil {
		return nil
	}
	ws := workspace.NewPersistent(filepath.Join(bs.Generator.root, ".doxysite"), "workspace")
	if err := ws.Create(); err != nil {
		return newFatalStageError(StageFetchSource, err)
	}
	client := gitfetch.NewClient(ws.Path())
	checkout, err := client.CloneOrUpdate(src)
	if err != nil {
		bs.Report.AddIssue(IssueFetchFailure, StageFetchSource, SeverityWarning, err.Error(), true)
		return newWarnStageError(StageFetchSource, fmt.Errorf("fetch source: %w", err))
	}
	bs.SourceRoot = checkout
	bs.Report.SourceCommit = gitfetch.HeadCommit(checkout)
	return nil
}

// stageDiscoverInputs enumerates headers, prose pages and template overrides.
func stageDiscoverInputs(ctx context.Context, bs *BuildState) error {
	disc := inputs.NewDiscovery(bs.Generator.config, bs.siteDir())
	inv, err := disc.Discover()
	if err != nil {
		return newFatalStageError(StageDiscoverInputs, err)
	}
	bs.Inventory = inv
	bs.Report.Headers = len(inv.Headers)
	bs.Report.Pages = len(inv.Pages)
	bs.Report.Overrides = len(inv.Overrides)

	if bs.ShouldExtract() && len(inv.Headers) == 0 {
		msg := "no headers found for extraction under " + bs.Generator.config.Doxygen.InputDir
		bs.Report.AddIssue(IssueNoHeaders, StageDiscoverInputs, SeverityWarning, msg, false)
		return newWarnStageError(StageDiscoverInputs, errors.New(msg))
	}
	return nil
}

// stageRenderDoxyfile substitutes the placeholder tokens into the doxygen
// config template. Skipped entirely for builds that will not extract.
func stageRenderDoxyfile(ctx context.Context, bs *BuildState) error {
	if !bs.ShouldExtract() {
		slog.Debug("Skipping doxyfile render", slog.Bool("hosted", bs.Hosted.Hosted))
		return nil
	}
	dx := bs.Generator.config.Doxygen
	result, err := doxyfile.Render(bs.sitePath(dx.Template), bs.sitePath(dx.Generated), doxyfile.Substitutions(dx))
	if err != nil {
		if errors.Is(err, doxyfile.ErrTemplateNotFound) {
			bs.Report.AddIssue(IssueTemplateMissing, StageRenderDoxyfile, SeverityError, err.Error(), false)
		}
		return newFatalStageError(StageRenderDoxyfile, err)
	}
	bs.Doxyfile = result
	bs.Report.DoxyfileFingerprint = result.Fingerprint
	for _, token := range result.Missing {
		msg := fmt.Sprintf("token %s does not occur in %s", token, dx.Template)
		slog.Warn("Doxyfile token absent from template", logfields.Token(token), logfields.Path(dx.Template))
		bs.Report.AddIssue(IssueTokenMissing, StageRenderDoxyfile, SeverityWarning, msg, false)
	}
	if len(result.Missing) > 0 {
		return newWarnStageError(StageRenderDoxyfile, fmt.Errorf("%d token(s) missing from template", len(result.Missing)))
	}
	slog.Info("Doxyfile rendered", logfields.Path(result.GeneratedPath), slog.Int("bytes", result.Bytes))
	return nil
}

// stageRunDoxygen invokes the extractor. A non-zero exit is reported as a
// warning by default so a flaky doxygen run degrades the API reference
// instead of taking the whole site down; fail_on_extractor_error opts into
// strictness.
func stageRunDoxygen(ctx context.Context, bs *BuildState) error {
	if !bs.ShouldExtract() {
		return nil
	}
	cfg := bs.Generator.config
	bs.Report.ExtractorVersion = doxygen.DetectVersion(ctx, cfg.Doxygen.Binary)

	workDir := bs.siteDir()
	if cfg.Doxygen.WorkDir != "" {
		workDir = bs.sitePath(cfg.Doxygen.WorkDir)
	}
	result, err := bs.Generator.extractor.Extract(ctx, bs.sitePath(cfg.Doxygen.Generated), workDir)
	if result != nil {
		bs.Extraction = result
		bs.Report.ExtractorRan = result.Binary != "noop"
		bs.Report.ExtractorExit = result.ExitCode
		bs.Generator.recorder.ObserveExtractorDuration(result.Duration, err == nil)
		bs.Generator.recorder.IncExtractorResult(err == nil)
	}
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return newCanceledStageError(StageRunDoxygen, err)
	case errors.Is(err, doxygen.ErrBinaryNotFound):
		bs.Report.AddIssue(IssueExtractorMissing, StageRunDoxygen, SeverityWarning, err.Error(), false)
		return newWarnStageError(StageRunDoxygen, err)
	}
	if cfg.Build.FailOnExtractorError {
		bs.Report.AddIssue(IssueExtractorFailure, StageRunDoxygen, SeverityError, err.Error(), true)
		return newFatalStageError(StageRunDoxygen, err)
	}
	bs.Report.AddIssue(IssueExtractorFailure, StageRunDoxygen, SeverityWarning, err.Error(), true)
	return newWarnStageError(StageRunDoxygen, err)
}

// stageRegisterProjects records the extracted XML location for breathe. Local
// prose builds leave the mapping empty; breathe_default_project is always
// emitted regardless.
func stageRegisterProjects(ctx context.Context, bs *BuildState) error {
	if !bs.ShouldExtract() {
		return nil
	}
	cfg := bs.Generator.config
	xmlDir := path.Join(cfg.Doxygen.OutputDir, cfg.Doxygen.XMLSubdir)
	bs.Settings.RegisterBreatheProject(cfg.Site.BreatheProject(), xmlDir)
	slog.Debug("Breathe project registered", logfields.Project(cfg.Site.BreatheProject()), logfields.Path(xmlDir))
	return nil
}

// stageWriteConf emits conf.py from the accumulated settings.
func stageWriteConf(ctx context.Context, bs *BuildState) error {
	confPath := bs.sitePath("conf.py")
	result, err := WriteConf(bs.Settings, confPath)
	if err != nil {
		return newFatalStageError(StageWriteConf, err)
	}
	bs.Report.ConfPath = result.Path
	slog.Info("Sphinx configuration written", logfields.Path(result.Path), slog.Int("bytes", result.Bytes))
	return nil
}

// stagePostProcess sanity-checks the artifacts this build promised. Extraction
// that reported success but produced no XML dir points at a template missing
// GENERATE_XML, which breathe would otherwise surface much later.
func stagePostProcess(ctx context.Context, bs *BuildState) error {
	cfg := bs.Generator.config
	if _, err := os.Stat(bs.sitePath("conf.py")); err != nil {
		return newFatalStageError(StagePostProcess, fmt.Errorf("conf.py missing after write: %w", err))
	}
	if bs.Report.ExtractorRan && bs.Extraction != nil && bs.Extraction.ExitCode == 0 {
		xmlDir := bs.sitePath(path.Join(cfg.Doxygen.OutputDir, cfg.Doxygen.XMLSubdir))
		if fi, err := os.Stat(xmlDir); err != nil || !fi.IsDir() {
			msg := "extraction succeeded but XML dir is missing: " + xmlDir
			bs.Report.AddIssue(IssueXMLMissing, StagePostProcess, SeverityWarning, msg, false)
			return newWarnStageError(StagePostProcess, errors.New(msg))
		}
	}
	return nil
}
