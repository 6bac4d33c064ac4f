// Package inputs discovers everything a documentation build consumes: C++
// headers destined for API extraction, prose pages (reStructuredText and
// Markdown), and theme template overrides. Discovery is read-only; it never
// modifies the source tree.
package inputs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/logfields"
)

// Header is a single C++ header considered input to API extraction.
type Header struct {
	Path         string // absolute path
	RelativePath string // relative to the configured input dir
	Section      string // top-level directory under the input dir, "" at root
	Name         string // file name without extension
	Extension    string
}

// Page is a prose documentation page.
type Page struct {
	Path         string
	RelativePath string
	Section      string
	Name         string
	Extension    string
	Title        string // first heading, or derived from the file name
}

// Inventory aggregates one discovery pass.
type Inventory struct {
	Headers   []Header
	Pages     []Page
	Overrides []TemplateOverride
	Sections  []string // ordered, human-readable section titles
}

// Discovery walks the configured source tree.
type Discovery struct {
	cfg   *config.Config
	root  string
	caser cases.Caser
}

// NewDiscovery creates a discovery pass rooted at the site source directory
// (the conf.py dir). Configured relative paths like "../../include" resolve
// against it, matching how a hand-maintained conf.py reads them.
func NewDiscovery(cfg *config.Config, siteDir string) *Discovery {
	return &Discovery{cfg: cfg, root: siteDir, caser: cases.Title(language.English)}
}

// Discover enumerates headers, pages and template overrides. Missing
// directories are logged and skipped rather than failing the build: a prose
// rework may legitimately have no headers checked out.
func (d *Discovery) Discover() (*Inventory, error) {
	inv := &Inventory{}

	headers, err := d.discoverHeaders()
	if err != nil {
		return nil, fmt.Errorf("discover headers: %w", err)
	}
	inv.Headers = headers

	pages, err := d.discoverPages()
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}
	inv.Pages = pages

	overrides, err := d.discoverOverrides()
	if err != nil {
		return nil, fmt.Errorf("discover template overrides: %w", err)
	}
	inv.Overrides = overrides

	inv.Sections = d.sectionTitles(inv)
	slog.Info("Inputs discovered",
		slog.Int("headers", len(inv.Headers)),
		slog.Int("pages", len(inv.Pages)),
		slog.Int("overrides", len(inv.Overrides)))
	return inv, nil
}

// discoverHeaders walks the doxygen input dir collecting files whose
// extension matches the configured header set.
func (d *Discovery) discoverHeaders() ([]Header, error) {
	inputDir := d.resolve(d.cfg.Doxygen.InputDir)
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		slog.Warn("Header input dir not found", logfields.Path(inputDir))
		return nil, nil
	}

	extSet := make(map[string]struct{}, len(d.cfg.Doxygen.HeaderExtensions))
	for _, ext := range d.cfg.Doxygen.HeaderExtensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	var headers []Header
	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(info.Name()))
		if _, ok := extSet[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		section := filepath.Dir(rel)
		if section == "." {
			section = ""
		} else {
			// Section is the first path element only.
			section = strings.SplitN(section, string(filepath.Separator), 2)[0]
		}
		headers = append(headers, Header{
			Path:         path,
			RelativePath: rel,
			Section:      section,
			Name:         strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
			Extension:    ext,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortHeaders(headers)
	return headers, nil
}

// discoverPages walks the site source dir for .rst and .md files, honoring
// exclude patterns. Template and static dirs are handled separately.
func (d *Discovery) discoverPages() ([]Page, error) {
	srcDir := d.root
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		slog.Warn("Page source dir not found", logfields.Path(srcDir))
		return nil, nil
	}

	var pages []Page
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if info.IsDir() {
			if path == srcDir {
				return nil
			}
			if strings.HasPrefix(name, ".") || d.excluded(name) || d.auxiliaryDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.excluded(name) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".rst" && ext != ".md" {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		section := filepath.Dir(rel)
		if section == "." {
			section = ""
		}
		page := Page{
			Path:         path,
			RelativePath: rel,
			Section:      section,
			Name:         strings.TrimSuffix(name, filepath.Ext(name)),
			Extension:    ext,
		}
		page.Title = d.pageTitle(page)
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].RelativePath < pages[j].RelativePath })
	return pages, nil
}

// pageTitle extracts a display title: first heading in the file, falling back
// to a title-cased form of the file name.
func (d *Discovery) pageTitle(p Page) string {
	content, err := os.ReadFile(p.Path)
	if err != nil {
		slog.Warn("Failed to read page for title extraction", logfields.Path(p.Path), logfields.Error(err))
		return d.fallbackTitle(p.Name)
	}
	var title string
	switch p.Extension {
	case ".md":
		title = markdownTitle(content)
	case ".rst":
		title = restTitle(content)
	}
	if title == "" {
		return d.fallbackTitle(p.Name)
	}
	return title
}

// fallbackTitle converts a file name like "getting-started" to "Getting Started".
func (d *Discovery) fallbackTitle(name string) string {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(name, "-", " "), "_", " ")
	return d.caser.String(cleaned)
}

// sectionTitles produces the ordered set of human-readable section titles
// from everything discovered.
func (d *Discovery) sectionTitles(inv *Inventory) []string {
	seen := map[string]struct{}{}
	var raw []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		raw = append(raw, s)
	}
	for _, h := range inv.Headers {
		add(h.Section)
	}
	for _, p := range inv.Pages {
		add(p.Section)
	}
	sort.Strings(raw)
	titles := make([]string, len(raw))
	for i, s := range raw {
		titles[i] = d.fallbackTitle(s)
	}
	return titles
}

// excluded reports whether name matches one of the configured exclude
// patterns (glob or exact base-name match).
func (d *Discovery) excluded(name string) bool {
	for _, pat := range d.cfg.Site.ExcludePatterns {
		if pat == name {
			return true
		}
		if ok, err := filepath.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// auxiliaryDir reports whether name is a templates or static dir, which are
// never prose sources.
func (d *Discovery) auxiliaryDir(name string) bool {
	for _, t := range d.cfg.Site.TemplatesPath {
		if name == t {
			return true
		}
	}
	for _, s := range d.cfg.Site.StaticPath {
		if name == s {
			return true
		}
	}
	return false
}

func (d *Discovery) resolve(path string) string {
	if filepath.IsAbs(path) || d.root == "" {
		return path
	}
	return filepath.Clean(filepath.Join(d.root, path))
}

func sortHeaders(headers []Header) {
	sort.Slice(headers, func(i, j int) bool { return headers[i].RelativePath < headers[j].RelativePath })
}
