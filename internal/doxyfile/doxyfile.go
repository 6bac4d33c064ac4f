// Package doxyfile renders a doxygen configuration file from a template by
// replacing placeholder tokens with configured paths. Rendering is a pure
// textual transform: the same template and substitutions always produce
// byte-identical output, so repeated builds do not churn the generated file.
package doxyfile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/llnl/doxysite/internal/config"
)

// ErrTemplateNotFound indicates the configured template file does not exist.
// Callers use errors.Is to distinguish a missing template from IO failures.
var ErrTemplateNotFound = errors.New("doxyfile template not found")

// Substitution is one token replacement applied to the template text.
type Substitution struct {
	Token string
	Value string
}

// Substitutions returns the standard placeholder pair for a doxygen config
// domain: the input directory token and the output directory token.
func Substitutions(dx config.DoxygenConfig) []Substitution {
	return []Substitution{
		{Token: dx.InputToken, Value: dx.InputDir},
		{Token: dx.OutputToken, Value: dx.OutputDir},
	}
}

// RenderResult describes a completed render for logging and reporting.
type RenderResult struct {
	TemplatePath  string         `json:"template_path"`
	GeneratedPath string         `json:"generated_path"`
	Bytes         int            `json:"bytes"`
	Fingerprint   string         `json:"fingerprint"` // sha256 of the generated content
	Replacements  map[string]int `json:"replacements"`
	Missing       []string       `json:"missing,omitempty"` // tokens absent from the template
}

// Render reads the template, applies every substitution to all occurrences of
// its token, and writes the result to generatedPath atomically (temp file then
// rename). A token that never occurs is recorded in Missing rather than
// treated as an error; the template may simply predate that placeholder.
func Render(templatePath, generatedPath string, subs []Substitution) (*RenderResult, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
		}
		return nil, fmt.Errorf("read doxyfile template: %w", err)
	}

	content := string(raw)
	result := &RenderResult{
		TemplatePath:  templatePath,
		GeneratedPath: generatedPath,
		Replacements:  make(map[string]int, len(subs)),
	}
	for _, sub := range subs {
		n := strings.Count(content, sub.Token)
		result.Replacements[sub.Token] = n
		if n == 0 {
			result.Missing = append(result.Missing, sub.Token)
			continue
		}
		content = strings.ReplaceAll(content, sub.Token, sub.Value)
	}

	if err := writeAtomic(generatedPath, []byte(content)); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(content))
	result.Bytes = len(content)
	result.Fingerprint = hex.EncodeToString(sum[:])
	return result, nil
}

// Scan counts token occurrences in the template without rendering anything.
// The doctor uses this to report whether placeholders are still present.
func Scan(templatePath string, subs []Substitution) (map[string]int, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
		}
		return nil, fmt.Errorf("read doxyfile template: %w", err)
	}
	counts := make(map[string]int, len(subs))
	for _, sub := range subs {
		counts[sub.Token] = strings.Count(string(raw), sub.Token)
	}
	return counts, nil
}

// writeAtomic writes content next to the destination and renames it into
// place so a crashed build never leaves a half-written doxygen config.
func writeAtomic(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("ensure dir for generated doxyfile: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("write temp doxyfile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename doxyfile: %w", err)
	}
	return nil
}
