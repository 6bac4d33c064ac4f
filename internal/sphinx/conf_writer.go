package sphinx

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// confTemplate renders the Sphinx conf.py. The layout follows what
// sphinx-quickstart produces so diffs against a hand-maintained conf.py stay
// reviewable. Rendering is deterministic: identical settings produce
// byte-identical output.
const confTemplate = `# Configuration file for the Sphinx documentation builder.
#
# For the full list of built-in configuration values, see the documentation:
# https://www.sphinx-doc.org/en/master/usage/configuration.html

# -- Project information -----------------------------------------------------
# https://www.sphinx-doc.org/en/master/usage/configuration.html#project-information

project = {{py .Project}}
copyright = {{py .Copyright}}
author = {{py .Author}}

# -- General configuration ---------------------------------------------------
# https://www.sphinx-doc.org/en/master/usage/configuration.html#general-configuration

extensions = {{pylist .Extensions}}

templates_path = {{pylist .TemplatesPath}}
exclude_patterns = {{pylist .ExcludePatterns}}


# -- Options for HTML output -------------------------------------------------
# https://www.sphinx-doc.org/en/master/usage/configuration.html#options-for-html-output

html_theme = {{py .HTMLTheme}}
html_static_path = {{pylist .HTMLStaticPath}}

# Breathe Configuration
breathe_default_project = {{py .BreatheDefaultProject}}
{{- if .BreatheProjects}}
breathe_projects = { {{- range $i, $p := .BreatheProjects}}{{if $i}}, {{end}}{{py $p.Name}}: {{py $p.XMLDir}}{{end -}} }
{{- end}}
`

var confTmpl = template.Must(template.New("conf.py").Funcs(template.FuncMap{
	"py":     pyString,
	"pylist": pyList,
}).Parse(confTemplate))

// ConfResult describes a written conf.py.
type ConfResult struct {
	Path        string `json:"path"`
	Bytes       int    `json:"bytes"`
	Fingerprint string `json:"fingerprint"`
}

// RenderConf renders the conf.py content for the given settings.
func RenderConf(s *Settings) ([]byte, error) {
	var buf bytes.Buffer
	if err := confTmpl.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("render conf.py: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConf renders and atomically writes conf.py to path.
func WriteConf(s *Settings, path string) (*ConfResult, error) {
	content, err := RenderConf(s)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure dir for conf.py: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return nil, fmt.Errorf("write temp conf.py: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("atomic rename conf.py: %w", err)
	}
	sum := sha256.Sum256(content)
	return &ConfResult{Path: path, Bytes: len(content), Fingerprint: hex.EncodeToString(sum[:])}, nil
}

// pyString renders a Go string as a double-quoted Python string literal.
func pyString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// pyList renders a Go string slice as a Python list literal.
func pyList(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = pyString(it)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
