package inputs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/llnl/doxysite/internal/logfields"
)

// TemplateOverride is a theme template override found under a templates dir
// (conventionally _templates). Sphinx picks these up by name, so the build
// records them to surface typos like "layout.htm" early.
type TemplateOverride struct {
	Path  string
	Name  string // file name, the identity Sphinx matches on
	Title string // contents of the <title> element, if any
	Metas int    // count of <meta> elements, a rough complexity signal
}

// discoverOverrides parses every .html file under the configured templates
// dirs. Parse failures are logged and the file skipped; a broken override is
// the theme's problem to surface, not ours to block on.
func (d *Discovery) discoverOverrides() ([]TemplateOverride, error) {
	var overrides []TemplateOverride
	for _, tplDir := range d.cfg.Site.TemplatesPath {
		dir := d.resolve(tplDir)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read templates dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			f, err := os.Open(path)
			if err != nil {
				slog.Warn("Failed to open template override", logfields.Path(path), logfields.Error(err))
				continue
			}
			ov, err := parseOverride(f, path, entry.Name())
			_ = f.Close()
			if err != nil {
				slog.Warn("Failed to parse template override", logfields.Path(path), logfields.Error(err))
				continue
			}
			overrides = append(overrides, *ov)
		}
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].Name < overrides[j].Name })
	return overrides, nil
}

// parseOverride walks the HTML tree collecting the <title> text and counting
// <meta> elements. Jinja tags inside the file parse as plain text nodes, which
// is fine: only element structure matters here.
func parseOverride(r io.Reader, path, name string) (*TemplateOverride, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse override HTML: %w", err)
	}

	ov := &TemplateOverride{Path: path, Name: name}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				ov.Title = strings.TrimSpace(extractText(n))
			case "meta":
				ov.Metas++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ov, nil
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
