package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Sonarr = normalizeInstance(c.Sonarr, "SONARR_URL", "SONARR_API_KEY")
	c.Radarr = normalizeInstance(c.Radarr, "RADARR_URL", "RADARR_API_KEY")
	c.normalizeProbes()
	c.normalizeClassification()
	c.normalizeTags()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Cache.Path, err = expandPath(strings.TrimSpace(c.Cache.Path)); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func normalizeInstance(inst Instance, urlEnv, keyEnv string) Instance {
	if strings.TrimSpace(inst.URL) == "" {
		if value, ok := os.LookupEnv(urlEnv); ok {
			inst.URL = value
		}
	}
	if strings.TrimSpace(inst.APIKey) == "" {
		if value, ok := os.LookupEnv(keyEnv); ok {
			inst.APIKey = value
		}
	}
	inst.URL = strings.TrimRight(strings.TrimSpace(inst.URL), "/")
	inst.APIKey = strings.TrimSpace(inst.APIKey)
	if inst.TimeoutSeconds == 0 {
		inst.TimeoutSeconds = defaultInstanceTimeoutSeconds
	}
	return inst
}

func (c *Config) normalizeProbes() {
	c.Probes.FFprobeBinary = strings.TrimSpace(c.Probes.FFprobeBinary)
	if c.Probes.FFprobeBinary == "" {
		c.Probes.FFprobeBinary = defaultFFprobeBinary
	}
	c.Probes.MediaInfoBinary = strings.TrimSpace(c.Probes.MediaInfoBinary)
	if c.Probes.MediaInfoBinary == "" {
		c.Probes.MediaInfoBinary = defaultMediaInfoBinary
	}
}

func (c *Config) normalizeClassification() {
	c.Classification.MarkerPolicy = strings.ToLower(strings.TrimSpace(c.Classification.MarkerPolicy))
	if c.Classification.MarkerPolicy == "" {
		c.Classification.MarkerPolicy = defaultMarkerPolicy
	}
}

func (c *Config) normalizeTags() {
	c.Tags.Prefix = strings.ToLower(strings.TrimSpace(c.Tags.Prefix))
	prefixes := make([]string, 0, len(c.Tags.ManagedPrefixes))
	seen := make(map[string]struct{}, len(c.Tags.ManagedPrefixes))
	for _, prefix := range c.Tags.ManagedPrefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix == "" {
			continue
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	c.Tags.ManagedPrefixes = prefixes
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	case "critical":
		level = "error"
	}
	c.Logging.Level = level
}
