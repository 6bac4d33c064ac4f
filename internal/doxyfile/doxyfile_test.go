package doxyfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llnl/doxysite/internal/config"
)

const sampleTemplate = `PROJECT_NAME = "ygm"
INPUT = @DOXYGEN_INPUT_DIR@
OUTPUT_DIRECTORY = @DOXYGEN_OUTPUT_DIR@
GENERATE_XML = YES
`

func standardSubs() []Substitution {
	return Substitutions(config.DoxygenConfig{
		InputToken:  "@DOXYGEN_INPUT_DIR@",
		OutputToken: "@DOXYGEN_OUTPUT_DIR@",
		InputDir:    "../../include",
		OutputDir:   "build-doc",
	})
}

func TestRender_SubstitutesAllTokens(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "Doxyfile.in")
	out := filepath.Join(dir, "Doxyfile")
	if err := os.WriteFile(tpl, []byte(sampleTemplate), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Render(tpl, out, standardSubs())
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	generated, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read generated file: %v", err)
	}
	text := string(generated)
	if strings.Contains(text, "@DOXYGEN_INPUT_DIR@") || strings.Contains(text, "@DOXYGEN_OUTPUT_DIR@") {
		t.Errorf("generated file still contains placeholder tokens:\n%s", text)
	}
	if !strings.Contains(text, "INPUT = ../../include") {
		t.Errorf("input dir not substituted:\n%s", text)
	}
	if !strings.Contains(text, "OUTPUT_DIRECTORY = build-doc") {
		t.Errorf("output dir not substituted:\n%s", text)
	}
	if result.Replacements["@DOXYGEN_INPUT_DIR@"] != 1 || result.Replacements["@DOXYGEN_OUTPUT_DIR@"] != 1 {
		t.Errorf("unexpected replacement counts: %v", result.Replacements)
	}
	if len(result.Missing) != 0 {
		t.Errorf("no tokens should be missing, got %v", result.Missing)
	}
	if result.Fingerprint == "" || result.Bytes != len(text) {
		t.Errorf("result not populated: %+v", result)
	}
}

func TestRender_ReplacesEveryOccurrence(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "Doxyfile.in")
	out := filepath.Join(dir, "Doxyfile")
	content := "INPUT = @DOXYGEN_INPUT_DIR@\nEXAMPLE_PATH = @DOXYGEN_INPUT_DIR@/examples\n"
	if err := os.WriteFile(tpl, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Render(tpl, out, standardSubs())
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	generated, _ := os.ReadFile(out)
	if strings.Contains(string(generated), "@DOXYGEN_INPUT_DIR@") {
		t.Errorf("token survived rendering:\n%s", generated)
	}
	if result.Replacements["@DOXYGEN_INPUT_DIR@"] != 2 {
		t.Errorf("expected 2 replacements, got %v", result.Replacements)
	}
}

func TestRender_MissingTokenIsNoOp(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "Doxyfile.in")
	out := filepath.Join(dir, "Doxyfile")
	content := "PROJECT_NAME = ygm\nINPUT = @DOXYGEN_INPUT_DIR@\n"
	if err := os.WriteFile(tpl, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Render(tpl, out, standardSubs())
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "@DOXYGEN_OUTPUT_DIR@" {
		t.Errorf("expected output token reported missing, got %v", result.Missing)
	}
	generated, _ := os.ReadFile(out)
	want := "PROJECT_NAME = ygm\nINPUT = ../../include\n"
	if string(generated) != want {
		t.Errorf("generated = %q, want %q", generated, want)
	}
}

func TestRender_Deterministic(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "Doxyfile.in")
	out := filepath.Join(dir, "Doxyfile")
	if err := os.WriteFile(tpl, []byte(sampleTemplate), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Render(tpl, out, standardSubs())
	if err != nil {
		t.Fatal(err)
	}
	firstBytes, _ := os.ReadFile(out)

	second, err := Render(tpl, out, standardSubs())
	if err != nil {
		t.Fatal(err)
	}
	secondBytes, _ := os.ReadFile(out)

	if string(firstBytes) != string(secondBytes) {
		t.Error("re-render produced different bytes")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
}

func TestRender_TemplateNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Render(filepath.Join(dir, "absent.in"), filepath.Join(dir, "Doxyfile"), standardSubs())
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestRender_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "Doxyfile.in")
	out := filepath.Join(dir, "Doxyfile")
	if err := os.WriteFile(tpl, []byte(sampleTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Render(tpl, out, standardSubs()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after rename")
	}
}
