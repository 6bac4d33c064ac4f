// Package hosted detects whether the current process is running inside a
// hosted documentation builder (Read the Docs by default). Detection drives
// whether API extraction runs at all: local builds skip it so contributors
// can render prose without a doxygen toolchain installed.
package hosted

import (
	"os"

	"github.com/llnl/doxysite/internal/config"
)

// Detection captures the outcome of a hosted-environment probe along with
// enough context to log a useful one-liner about it.
type Detection struct {
	Hosted   bool   `json:"hosted"`
	Provider string `json:"provider"`        // env var consulted, e.g. READTHEDOCS
	Value    string `json:"value,omitempty"` // raw value observed (may be empty)
	Forced   bool   `json:"forced,omitempty"`
}

// Detect probes the configured environment variable. The flag is set only on
// an exact string match: "true", "TRUE" or "1" where "True" is expected all
// count as not hosted. An unset variable and a set-but-different variable are
// indistinguishable in the result apart from Value.
func Detect(cfg config.HostedConfig) Detection {
	d := Detection{Provider: cfg.EnvVar}
	if cfg.Force {
		d.Hosted = true
		d.Forced = true
		d.Value = os.Getenv(cfg.EnvVar)
		return d
	}
	d.Value = os.Getenv(cfg.EnvVar)
	d.Hosted = d.Value == cfg.EnvValue
	return d
}
