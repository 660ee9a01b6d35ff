package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const apiKeyLength = 32

var tagPrefixPattern = regexp.MustCompile(`^([a-z0-9][a-z0-9-]*-)?$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validateInstance("sonarr", c.Sonarr); err != nil {
		return err
	}
	if err := validateInstance("radarr", c.Radarr); err != nil {
		return err
	}
	if err := c.validateProbes(); err != nil {
		return err
	}
	if err := c.validateClassification(); err != nil {
		return err
	}
	if err := c.validateTags(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func validateInstance(name string, inst Instance) error {
	if inst.URL == "" && inst.APIKey == "" {
		return nil
	}
	if inst.URL == "" {
		return fmt.Errorf("%s.url must be set when %s.api_key is set", name, name)
	}
	parsed, err := url.Parse(inst.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s.url must be an http(s) URL, got %q", name, inst.URL)
	}
	if inst.APIKey == "" {
		return fmt.Errorf("%s.api_key must be set when %s.url is set (or set %s_API_KEY)", name, name, strings.ToUpper(name))
	}
	if len(inst.APIKey) != apiKeyLength {
		return fmt.Errorf("%s.api_key must be %d characters", name, apiKeyLength)
	}
	if inst.TimeoutSeconds <= 0 {
		return fmt.Errorf("%s.timeout_seconds must be positive", name)
	}
	return nil
}

func (c *Config) validateProbes() error {
	return ensurePositiveMap(map[string]int{
		"probes.timeout_seconds": c.Probes.TimeoutSeconds,
		"probes.max_concurrent":  c.Probes.MaxConcurrent,
	})
}

func (c *Config) validateClassification() error {
	if c.Classification.RuntimeThresholdSeconds <= 0 {
		return errors.New("classification.runtime_threshold_seconds must be positive")
	}
	switch c.Classification.MarkerPolicy {
	case "presence", "unanimous":
	default:
		return fmt.Errorf("classification.marker_policy must be presence or unanimous, got %q", c.Classification.MarkerPolicy)
	}
	return nil
}

func (c *Config) validateTags() error {
	if !tagPrefixPattern.MatchString(c.Tags.Prefix) {
		return fmt.Errorf("tags.prefix must be empty or a-z, 0-9 and '-' ending in '-', got %q", c.Tags.Prefix)
	}
	if c.Tags.IMAXConfidenceThreshold < 0 || c.Tags.IMAXConfidenceThreshold > 1 {
		return errors.New("tags.imax_confidence_threshold must be between 0 and 1")
	}
	if c.Tags.EditionConfidenceThreshold < 0 || c.Tags.EditionConfidenceThreshold > 1 {
		return errors.New("tags.edition_confidence_threshold must be between 0 and 1")
	}
	if c.Tags.MaxConcurrentItems <= 0 {
		return errors.New("tags.max_concurrent_items must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warning, error, critical; got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
