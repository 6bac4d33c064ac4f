package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/daemon"
	"github.com/llnl/doxysite/internal/doxyfile"
	"github.com/llnl/doxysite/internal/doxygen"
	"github.com/llnl/doxysite/internal/events"
	"github.com/llnl/doxysite/internal/history"
	"github.com/llnl/doxysite/internal/hosted"
	"github.com/llnl/doxysite/internal/inputs"
	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/metrics"
	"github.com/llnl/doxysite/internal/sphinx"
	"github.com/llnl/doxysite/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"doxysite.yaml"`
	Root    string `short:"C" help:"Project root directory to run in" default:"."`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Hosted  bool   `help:"Force the hosted-build branch regardless of the environment"`
		Extract string `help:"Override extraction mode (auto, always, never)"`
	} `cmd:"" help:"Run the full configuration build: render the Doxyfile, extract API docs, write conf.py"`

	Configure struct{} `cmd:"" help:"Write the site configuration without fetching sources or extracting"`

	Discover struct{} `cmd:"" help:"Enumerate extraction inputs (headers, pages, template overrides) without building"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Check struct{} `cmd:"" help:"Check the extraction environment: extractor, template tokens, input directory"`

	History struct {
		Limit int `short:"n" help:"Number of records to show" default:"20"`
	} `cmd:"" help:"List recent builds from the local history store"`

	Daemon struct {
		Addr string `help:"Admin HTTP listen address (overrides configuration)"`
	} `cmd:"" help:"Watch inputs and rebuild the configuration continuously"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "build":
		if err := runBuild(); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "configure":
		if err := runConfigure(); err != nil {
			slog.Error("Configure failed", logfields.Error(err))
			os.Exit(1)
		}
	case "discover":
		if err := runDiscover(); err != nil {
			slog.Error("Discover failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
	case "check":
		if err := runCheck(); err != nil {
			slog.Error("Check failed", logfields.Error(err))
			os.Exit(1)
		}
	case "history":
		if err := runHistory(CLI.History.Limit); err != nil {
			slog.Error("History failed", logfields.Error(err))
			os.Exit(1)
		}
	case "daemon":
		if err := runDaemon(CLI.Daemon.Addr); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Printf("doxysite %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

// loadConfig reads the configured YAML file, falling back to pure defaults
// when it does not exist. Hosted builds commonly run without a config file;
// the defaults reproduce the ygm documentation site.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Debug("No configuration file, using defaults", logfields.Path(path))
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyBuildFlags layers the build command's flags onto the loaded
// configuration. Flags win over the file for the one run they are given.
func applyBuildFlags(cfg *config.Config) error {
	if CLI.Build.Hosted {
		cfg.Hosted.Force = true
	}
	if CLI.Build.Extract != "" {
		mode := config.NormalizeExtractMode(CLI.Build.Extract)
		if mode == "" {
			return fmt.Errorf("unknown extract mode %q (expected auto, always or never)", CLI.Build.Extract)
		}
		cfg.Build.ExtractMode = mode
	}
	return nil
}

func runBuild() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}
	if err := applyBuildFlags(cfg); err != nil {
		return err
	}

	generator := sphinx.NewGenerator(cfg, CLI.Root)
	report, err := generator.Build(ctx)
	if err != nil {
		return err
	}

	recordBuild(ctx, cfg, report)
	fmt.Println(report.Summary())
	return nil
}

func runConfigure() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}

	report, err := sphinx.NewGenerator(cfg, CLI.Root).Configure(ctx)
	if err != nil {
		return err
	}
	fmt.Println(report.Summary())
	return nil
}

// recordBuild persists the report to the history store and publishes the
// completion event when those subsystems are enabled. Both are best effort:
// a full disk or an unreachable broker must not fail a build that already
// finished.
func recordBuild(ctx context.Context, cfg *config.Config, report *sphinx.BuildReport) {
	if cfg.History.Enabled {
		store, err := history.Open(historyPath(cfg))
		if err != nil {
			slog.Warn("History store unavailable", logfields.Error(err))
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					slog.Warn("History store close failed", logfields.Error(err))
				}
			}()
			if _, err := store.Record(ctx, report); err != nil {
				slog.Warn("Recording build history failed", logfields.Error(err))
			} else if cfg.History.Keep > 0 {
				if _, err := store.Prune(ctx, cfg.History.Keep); err != nil {
					slog.Warn("Pruning build history failed", logfields.Error(err))
				}
			}
		}
	}

	if cfg.Events != nil && cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events)
		if err != nil {
			slog.Warn("Event publisher unavailable", logfields.Error(err))
			return
		}
		defer func() {
			if err := pub.Close(); err != nil {
				slog.Warn("Event publisher close failed", logfields.Error(err))
			}
		}()
		ev := events.NewCompletedEvent(uuid.NewString(), "manual", report)
		if err := pub.Publish(ctx, ev); err != nil {
			slog.Warn("Publishing build event failed", logfields.Error(err))
		}
	}
}

// historyPath resolves the configured history database path against the
// project root, mirroring how the daemon opens the same store.
func historyPath(cfg *config.Config) string {
	p := cfg.History.Path
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(CLI.Root, p)
}

func runDiscover() error {
	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}

	siteDir := filepath.Join(CLI.Root, cfg.Site.SourceDir)
	inventory, err := inputs.NewDiscovery(cfg, siteDir).Discover()
	if err != nil {
		return err
	}

	fmt.Printf("project %s: %d headers, %d pages, %d template overrides\n",
		cfg.Site.Project, len(inventory.Headers), len(inventory.Pages), len(inventory.Overrides))
	for _, h := range inventory.Headers {
		fmt.Printf("  header    %-44s section=%s\n", h.RelativePath, h.Section)
	}
	for _, p := range inventory.Pages {
		fmt.Printf("  page      %-44s title=%q\n", p.RelativePath, p.Title)
	}
	for _, o := range inventory.Overrides {
		fmt.Printf("  override  %-44s title=%q\n", o.Name, o.Title)
	}
	if len(inventory.Sections) > 0 {
		fmt.Printf("  sections: %v\n", inventory.Sections)
	}
	return nil
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", logfields.Path(configPath), slog.Bool("force", force))
	return config.Init(configPath, force)
}

// runCheck is the environment doctor: it reports on everything a hosted build
// needs and exits non-zero when any of it is missing. Absent tokens are only
// flagged, matching the render stage's warning semantics.
func runCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}

	detection := hosted.Detect(cfg.Hosted)
	fmt.Printf("hosted:     %t (%s=%q)\n", detection.Hosted, detection.Provider, detection.Value)

	problems := 0

	if binPath, err := exec.LookPath(cfg.Doxygen.Binary); err != nil {
		fmt.Printf("extractor:  MISSING (%s not on PATH)\n", cfg.Doxygen.Binary)
		problems++
	} else if ver := doxygen.DetectVersion(ctx, cfg.Doxygen.Binary); ver != "" {
		fmt.Printf("extractor:  %s (version %s)\n", binPath, ver)
	} else {
		fmt.Printf("extractor:  %s (version unknown)\n", binPath)
	}

	siteDir := filepath.Join(CLI.Root, cfg.Site.SourceDir)
	templatePath := filepath.Clean(filepath.Join(siteDir, cfg.Doxygen.Template))
	subs := doxyfile.Substitutions(cfg.Doxygen)
	counts, err := doxyfile.Scan(templatePath, subs)
	if err != nil {
		fmt.Printf("template:   MISSING (%s)\n", templatePath)
		problems++
	} else {
		fmt.Printf("template:   %s\n", templatePath)
		for _, sub := range subs {
			if n := counts[sub.Token]; n > 0 {
				fmt.Printf("  token %-22s x%d -> %s\n", sub.Token, n, sub.Value)
			} else {
				fmt.Printf("  token %-22s ABSENT\n", sub.Token)
			}
		}
	}

	inputDir := filepath.Clean(filepath.Join(siteDir, cfg.Doxygen.InputDir))
	if fi, err := os.Stat(inputDir); err != nil || !fi.IsDir() {
		fmt.Printf("input dir:  MISSING (%s)\n", inputDir)
		problems++
	} else {
		fmt.Printf("input dir:  %s\n", inputDir)
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println("environment OK")
	return nil
}

func runHistory(limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history store is disabled; enable it in %s", CLI.Config)
	}

	store, err := history.Open(historyPath(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("History store close failed", logfields.Error(err))
		}
	}()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no builds recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%4d  %s  %-8s  hosted=%-5t  headers=%-4d  pages=%-4d  extractor=%-5t  %s\n",
			e.ID, e.CreatedAt.Format(time.RFC3339), e.Outcome, e.Hosted,
			e.Headers, e.Pages, e.ExtractorRan, e.Duration.Truncate(time.Millisecond))
	}
	return nil
}

func runDaemon(addrOverride string) error {
	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}
	if cfg.Daemon == nil {
		// Running the daemon without a daemon section gets all defaults.
		cfg.Daemon = &config.DaemonConfig{}
		if err := config.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	if addrOverride != "" {
		cfg.Daemon.HTTPAddr = addrOverride
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, CLI.Root)
	if err != nil {
		return err
	}
	d.SetRecorder(metrics.NewPrometheusRecorder(nil))
	if _, err := os.Stat(CLI.Config); err == nil {
		d.WithConfigFile(CLI.Config)
	}
	return d.Run(ctx)
}
