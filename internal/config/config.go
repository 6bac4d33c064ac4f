package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Doxygen DoxygenConfig `yaml:"doxygen"`
	Source  *SourceConfig `yaml:"source,omitempty"`
	Build   BuildConfig   `yaml:"build"`
	Hosted  HostedConfig  `yaml:"hosted"`
	Output  OutputConfig  `yaml:"output"`
	History HistoryConfig `yaml:"history"`
	Events  *EventsConfig `yaml:"events,omitempty"`
	Daemon  *DaemonConfig `yaml:"daemon,omitempty"`
}

// SiteConfig carries the static site metadata consumed by the site generator.
// Defaults reproduce the ygm documentation site.
type SiteConfig struct {
	Project         string   `yaml:"project"`
	Copyright       string   `yaml:"copyright,omitempty"`
	Author          string   `yaml:"author,omitempty"`
	Extensions      []string `yaml:"extensions,omitempty"`
	TemplatesPath   []string `yaml:"templates_path,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	Theme           string   `yaml:"theme,omitempty"`
	StaticPath      []string `yaml:"static_path,omitempty"`
	DefaultProject  string   `yaml:"default_project,omitempty"` // breathe default project; falls back to Project
	SourceDir       string   `yaml:"source_dir,omitempty"`      // site source dir holding conf.py, _templates, _static
}

// DoxygenConfig controls the Doxyfile templating step and the extractor run.
type DoxygenConfig struct {
	Binary           string   `yaml:"binary,omitempty"`    // extractor executable, resolved via PATH
	Template         string   `yaml:"template,omitempty"`  // Doxyfile.in location
	Generated        string   `yaml:"generated,omitempty"` // substituted Doxyfile location
	InputDir         string   `yaml:"input_dir,omitempty"`
	OutputDir        string   `yaml:"output_dir,omitempty"`
	XMLSubdir        string   `yaml:"xml_subdir,omitempty"`
	WorkDir          string   `yaml:"work_dir,omitempty"` // directory the extractor runs in
	InputToken       string   `yaml:"input_token,omitempty"`
	OutputToken      string   `yaml:"output_token,omitempty"`
	HeaderExtensions []string `yaml:"header_extensions,omitempty"` // used by input discovery only
}

// SourceConfig optionally points the build at a remote repository; when set,
// the pipeline fetches a checkout into the workspace before discovery.
type SourceConfig struct {
	URL          string `yaml:"url"`
	Branch       string `yaml:"branch,omitempty"`
	ShallowDepth int    `yaml:"shallow_depth,omitempty"`
}

// ExtractMode controls when the external extractor is invoked.
type ExtractMode string

const (
	// ExtractModeAuto runs the extractor only inside a hosted docs build.
	ExtractModeAuto ExtractMode = "auto"
	// ExtractModeAlways runs the extractor on every build.
	ExtractModeAlways ExtractMode = "always"
	// ExtractModeNever skips Doxyfile rendering and extraction entirely.
	ExtractModeNever ExtractMode = "never"
)

// NormalizeExtractMode maps raw user input to a canonical ExtractMode, or ""
// when the value is unknown.
func NormalizeExtractMode(raw string) ExtractMode {
	switch ExtractMode(raw) {
	case ExtractModeAuto, ExtractModeAlways, ExtractModeNever:
		return ExtractMode(raw)
	}
	return ""
}

// BuildConfig carries pipeline behavior flags.
type BuildConfig struct {
	ExtractMode          ExtractMode `yaml:"extract_mode,omitempty"`
	FailOnExtractorError bool        `yaml:"fail_on_extractor_error,omitempty"` // default false: extractor failure is a warning
}

// HostedConfig describes how the hosted documentation-build environment is
// detected. The flag is true iff the variable's value equals the literal
// exactly; unset or mismatched values take the non-hosted branch.
type HostedConfig struct {
	EnvVar   string `yaml:"env_var,omitempty"`
	EnvValue string `yaml:"env_value,omitempty"`
	Force    bool   `yaml:"force,omitempty"` // treat the build as hosted regardless of the environment
}

// OutputConfig represents build artifact output configuration
type OutputConfig struct {
	Directory string `yaml:"directory,omitempty"` // report destination; defaults to the extraction output dir
	Clean     bool   `yaml:"clean,omitempty"`
}

// HistoryConfig controls the local build record store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // sqlite database file; ":memory:" supported
	Keep    int    `yaml:"keep,omitempty"` // retained records; older ones are pruned
}

// EventsConfig controls optional build event publishing over NATS JetStream.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// DaemonConfig configures watch/schedule mode.
type DaemonConfig struct {
	WatchPaths []string `yaml:"watch_paths,omitempty"` // defaults to template + input dir
	Debounce   string   `yaml:"debounce,omitempty"`
	Schedule   string   `yaml:"schedule,omitempty"` // periodic rebuild interval, e.g. "1h"; empty disables
	HTTPAddr   string   `yaml:"http_addr,omitempty"`
	QueueSize  int      `yaml:"queue_size,omitempty"`
	Workers    int      `yaml:"workers,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; missing files are fine.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ApplyDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied and no file read.
// Used when the tool runs without a config file (the common hosted case).
func Default() *Config {
	cfg := &Config{}
	// Defaults cannot fail on an empty config.
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Site: SiteConfig{
			Project:   "ygm",
			Copyright: "2023, LLNL YGM team",
			Author:    "LLNL YGM team",
			Theme:     "sphinx_rtd_theme",
			SourceDir: ".",
		},
		Doxygen: DoxygenConfig{
			Template:  "../Doxyfile.in",
			Generated: "../Doxyfile",
			InputDir:  "../../include",
			OutputDir: "build-doc",
		},
		Build: BuildConfig{
			ExtractMode: ExtractModeAuto,
		},
		Hosted: HostedConfig{
			EnvVar:   "READTHEDOCS",
			EnvValue: "True",
		},
		Output: OutputConfig{
			Directory: "build-doc",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".doxysite/history.db",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BreatheProject returns the extension project name the extraction output is
// registered under (explicit default project, else the site project).
func (s *SiteConfig) BreatheProject() string {
	if s.DefaultProject != "" {
		return s.DefaultProject
	}
	return s.Project
}
