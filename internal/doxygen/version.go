package doxygen

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// DetectVersion attempts to detect the version of the extractor binary on
// PATH. An empty binary means "doxygen". Returns the version string (e.g.,
// "1.9.8") or empty string if detection fails. Best-effort; never errors
// when doxygen is unavailable.
func DetectVersion(ctx context.Context, binary string) string {
	if binary == "" {
		binary = "doxygen"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return ""
	}

	// #nosec G204 -- path is from exec.LookPath, not user-controlled
	cmd := exec.CommandContext(ctx, path, "--version")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	// Expected format examples:
	//   1.9.8
	//   1.9.8 (c2fe5c3e4cd1ffcf9e4e50a42a5d6c4c7f4e8b9a)
	return parseVersion(string(output))
}

// parseVersion extracts the numeric version from doxygen --version output.
func parseVersion(output string) string {
	versionRegex := regexp.MustCompile(`(\d+\.\d+\.\d+)`)
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return strings.TrimSpace(output)
}
