package sphinx

import (
	"github.com/llnl/doxysite/internal/config"
)

// BreatheProject maps a breathe project name to the directory holding its
// extracted XML. Kept as a slice so conf.py rendering stays deterministic.
type BreatheProject struct {
	Name   string
	XMLDir string
}

// Settings is the full set of values emitted into conf.py. It mirrors the
// Sphinx configuration surface this generator manages; anything not listed
// here is out of its hands.
type Settings struct {
	Project         string
	Copyright       string
	Author          string
	Extensions      []string
	TemplatesPath   []string
	ExcludePatterns []string
	HTMLTheme       string
	HTMLStaticPath  []string

	// BreatheDefaultProject is always emitted; BreatheProjects only when a
	// build registered extracted XML.
	BreatheDefaultProject string
	BreatheProjects       []BreatheProject
}

// NewSettings builds the static settings from configuration. Breathe project
// registration happens later, once extraction output is known.
func NewSettings(cfg *config.Config) *Settings {
	return &Settings{
		Project:               cfg.Site.Project,
		Copyright:             cfg.Site.Copyright,
		Author:                cfg.Site.Author,
		Extensions:            append([]string(nil), cfg.Site.Extensions...),
		TemplatesPath:         append([]string(nil), cfg.Site.TemplatesPath...),
		ExcludePatterns:       append([]string(nil), cfg.Site.ExcludePatterns...),
		HTMLTheme:             cfg.Site.Theme,
		HTMLStaticPath:        append([]string(nil), cfg.Site.StaticPath...),
		BreatheDefaultProject: cfg.Site.BreatheProject(),
	}
}

// RegisterBreatheProject records extracted XML for a project. Registering the
// same name twice updates the existing entry instead of appending.
func (s *Settings) RegisterBreatheProject(name, xmlDir string) {
	for i := range s.BreatheProjects {
		if s.BreatheProjects[i].Name == name {
			s.BreatheProjects[i].XMLDir = xmlDir
			return
		}
	}
	s.BreatheProjects = append(s.BreatheProjects, BreatheProject{Name: name, XMLDir: xmlDir})
}
