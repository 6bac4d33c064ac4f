package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

// newConfigurationValidator creates a comprehensive configuration validator.
func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs configuration validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	if err := cv.validateSite(); err != nil {
		return err
	}
	if err := cv.validateDoxygen(); err != nil {
		return err
	}
	if err := cv.validateHosted(); err != nil {
		return err
	}
	if err := cv.validateSource(); err != nil {
		return err
	}
	if err := cv.validateEvents(); err != nil {
		return err
	}
	return cv.validateDaemon()
}

func (cv *configurationValidator) validateSite() error {
	if cv.config.Site.Project == "" {
		return errors.New("site project name cannot be empty")
	}
	return nil
}

func (cv *configurationValidator) validateDoxygen() error {
	dx := cv.config.Doxygen
	if dx.Template == "" {
		return errors.New("doxygen template path cannot be empty")
	}
	if dx.Generated == "" {
		return errors.New("doxygen generated path cannot be empty")
	}
	if dx.Template == dx.Generated {
		return fmt.Errorf("doxygen template and generated file must differ: %s", dx.Template)
	}
	if dx.InputToken == dx.OutputToken {
		return fmt.Errorf("doxygen placeholder tokens must differ: %s", dx.InputToken)
	}
	if !strings.HasPrefix(dx.InputToken, "@") || !strings.HasPrefix(dx.OutputToken, "@") {
		return errors.New("doxygen placeholder tokens must use the @NAME@ form")
	}
	return nil
}

func (cv *configurationValidator) validateHosted() error {
	if cv.config.Hosted.EnvVar == "" {
		return errors.New("hosted env_var cannot be empty")
	}
	return nil
}

func (cv *configurationValidator) validateSource() error {
	src := cv.config.Source
	if src == nil {
		return nil
	}
	if src.URL == "" {
		return errors.New("source url cannot be empty when a source block is configured")
	}
	return nil
}

func (cv *configurationValidator) validateEvents() error {
	ev := cv.config.Events
	if ev == nil || !ev.Enabled {
		return nil
	}
	if ev.NATSURL == "" {
		return errors.New("events nats_url cannot be empty when events are enabled")
	}
	if ev.Subject == "" {
		return errors.New("events subject cannot be empty when events are enabled")
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d == nil {
		return nil
	}
	if _, err := time.ParseDuration(d.Debounce); err != nil {
		return fmt.Errorf("daemon debounce is not a duration: %q", d.Debounce)
	}
	if d.Schedule != "" {
		interval, err := time.ParseDuration(d.Schedule)
		if err != nil {
			return fmt.Errorf("daemon schedule is not a duration: %q", d.Schedule)
		}
		if interval < time.Minute {
			return fmt.Errorf("daemon schedule below 1m would rebuild continuously: %s", interval)
		}
	}
	return nil
}
