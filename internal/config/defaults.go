package config

import "fmt"

// Site metadata defaults (the ygm documentation site).
const (
	DefaultProjectName = "ygm"
	DefaultCopyright   = "2023, LLNL YGM team"
	DefaultAuthor      = "LLNL YGM team"
	DefaultTheme       = "sphinx_rtd_theme"
)

// Doxyfile templating defaults. The two placeholder tokens are fixed
// literals; the directories are the relative paths the hosted build uses.
const (
	DefaultInputToken  = "@DOXYGEN_INPUT_DIR@"
	DefaultOutputToken = "@DOXYGEN_OUTPUT_DIR@"
	DefaultInputDir    = "../../include"
	DefaultOutputDir   = "build-doc"
	DefaultTemplate    = "../Doxyfile.in"
	DefaultGenerated   = "../Doxyfile"
	DefaultXMLSubdir   = "xml"
	DefaultBinary      = "doxygen"
)

// Hosted-build detection defaults.
const (
	DefaultHostedEnvVar   = "READTHEDOCS"
	DefaultHostedEnvValue = "True"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ApplyDefaults runs every domain applier against the configuration.
func ApplyDefaults(cfg *Config) error {
	appliers := []DefaultApplier{
		&SiteDefaultApplier{},
		&DoxygenDefaultApplier{},
		&BuildDefaultApplier{},
		&HostedDefaultApplier{},
		&OutputDefaultApplier{},
		&HistoryDefaultApplier{},
		&EventsDefaultApplier{},
		&DaemonDefaultApplier{},
		&SourceDefaultApplier{},
	}
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("%s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

// SiteDefaultApplier handles site metadata defaults.
type SiteDefaultApplier struct{}

func (s *SiteDefaultApplier) Domain() string { return "site" }

func (s *SiteDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Site.Project == "" {
		cfg.Site.Project = DefaultProjectName
	}
	if cfg.Site.Copyright == "" {
		cfg.Site.Copyright = DefaultCopyright
	}
	if cfg.Site.Author == "" {
		cfg.Site.Author = DefaultAuthor
	}
	if len(cfg.Site.Extensions) == 0 {
		cfg.Site.Extensions = []string{"breathe"}
	}
	if len(cfg.Site.TemplatesPath) == 0 {
		cfg.Site.TemplatesPath = []string{"_templates"}
	}
	if len(cfg.Site.ExcludePatterns) == 0 {
		cfg.Site.ExcludePatterns = []string{"_build", "Thumbs.db", ".DS_Store"}
	}
	if cfg.Site.Theme == "" {
		cfg.Site.Theme = DefaultTheme
	}
	if len(cfg.Site.StaticPath) == 0 {
		cfg.Site.StaticPath = []string{"_static"}
	}
	if cfg.Site.SourceDir == "" {
		cfg.Site.SourceDir = "."
	}
	return nil
}

// DoxygenDefaultApplier handles extractor configuration defaults.
type DoxygenDefaultApplier struct{}

func (d *DoxygenDefaultApplier) Domain() string { return "doxygen" }

func (d *DoxygenDefaultApplier) ApplyDefaults(cfg *Config) error {
	dx := &cfg.Doxygen
	if dx.Binary == "" {
		dx.Binary = DefaultBinary
	}
	if dx.Template == "" {
		dx.Template = DefaultTemplate
	}
	if dx.Generated == "" {
		dx.Generated = DefaultGenerated
	}
	if dx.InputDir == "" {
		dx.InputDir = DefaultInputDir
	}
	if dx.OutputDir == "" {
		dx.OutputDir = DefaultOutputDir
	}
	if dx.XMLSubdir == "" {
		dx.XMLSubdir = DefaultXMLSubdir
	}
	if dx.WorkDir == "" {
		dx.WorkDir = "."
	}
	if dx.InputToken == "" {
		dx.InputToken = DefaultInputToken
	}
	if dx.OutputToken == "" {
		dx.OutputToken = DefaultOutputToken
	}
	if len(dx.HeaderExtensions) == 0 {
		dx.HeaderExtensions = []string{".h", ".hh", ".hpp", ".hxx", ".cuh"}
	}
	return nil
}

// BuildDefaultApplier handles pipeline behavior defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	// Extract mode default (auto) if unspecified or invalid
	if cfg.Build.ExtractMode == "" {
		cfg.Build.ExtractMode = ExtractModeAuto
	} else if m := NormalizeExtractMode(string(cfg.Build.ExtractMode)); m != "" {
		cfg.Build.ExtractMode = m
	} else {
		cfg.Build.ExtractMode = ExtractModeAuto
	}
	return nil
}

// HostedDefaultApplier handles hosted-build detection defaults.
type HostedDefaultApplier struct{}

func (h *HostedDefaultApplier) Domain() string { return "hosted" }

func (h *HostedDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Hosted.EnvVar == "" {
		cfg.Hosted.EnvVar = DefaultHostedEnvVar
	}
	if cfg.Hosted.EnvValue == "" {
		cfg.Hosted.EnvValue = DefaultHostedEnvValue
	}
	return nil
}

// OutputDefaultApplier handles report output defaults.
type OutputDefaultApplier struct{}

func (o *OutputDefaultApplier) Domain() string { return "output" }

func (o *OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = cfg.Doxygen.OutputDir
	}
	return nil
}

// HistoryDefaultApplier handles build history store defaults.
type HistoryDefaultApplier struct{}

func (h *HistoryDefaultApplier) Domain() string { return "history" }

func (h *HistoryDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		cfg.History.Path = ".doxysite/history.db"
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = 100
	}
	return nil
}

// EventsDefaultApplier handles NATS event publishing defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Events == nil {
		return nil
	}
	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "doxysite.builds"
	}
	if cfg.Events.Stream == "" {
		cfg.Events.Stream = "DOXYSITE"
	}
	return nil
}

// DaemonDefaultApplier handles watch/schedule mode defaults.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon == nil {
		return nil
	}
	if len(cfg.Daemon.WatchPaths) == 0 {
		cfg.Daemon.WatchPaths = []string{cfg.Doxygen.Template, cfg.Doxygen.InputDir}
	}
	if cfg.Daemon.Debounce == "" {
		cfg.Daemon.Debounce = "2s"
	}
	if cfg.Daemon.HTTPAddr == "" {
		cfg.Daemon.HTTPAddr = ":8085"
	}
	if cfg.Daemon.QueueSize <= 0 {
		cfg.Daemon.QueueSize = 16
	}
	if cfg.Daemon.Workers <= 0 {
		// Builds share the Doxyfile on disk; a single worker avoids racing on it.
		cfg.Daemon.Workers = 1
	}
	return nil
}

// SourceDefaultApplier handles remote source fetch defaults.
type SourceDefaultApplier struct{}

func (s *SourceDefaultApplier) Domain() string { return "source" }

func (s *SourceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Source == nil {
		return nil
	}
	if cfg.Source.Branch == "" {
		cfg.Source.Branch = "main"
	}
	if cfg.Source.ShallowDepth < 0 {
		cfg.Source.ShallowDepth = 0
	}
	return nil
}
