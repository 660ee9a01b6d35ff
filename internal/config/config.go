package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Instance contains connection settings for one Sonarr or Radarr server.
type Instance struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Configured reports whether both URL and API key are present.
func (i Instance) Configured() bool {
	return strings.TrimSpace(i.URL) != "" && strings.TrimSpace(i.APIKey) != ""
}

// Probes contains configuration for the external inspection tools.
type Probes struct {
	FFprobeBinary        string `toml:"ffprobe_binary"`
	MediaInfoBinary      string `toml:"mediainfo_binary"`
	MediaInfoEnabled     bool   `toml:"mediainfo_enabled"`
	CropDetectionEnabled bool   `toml:"crop_detection_enabled"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	MaxConcurrent        int    `toml:"max_concurrent"`
}

// Classification contains thresholds for turning evidence into facts.
type Classification struct {
	// RuntimeThresholdSeconds is the runtime delta beyond which a cut is
	// considered to differ from the reference release.
	RuntimeThresholdSeconds int `toml:"runtime_threshold_seconds"`
	// MarkerPolicy is "presence" or "unanimous".
	MarkerPolicy string `toml:"marker_policy"`
}

// Tags contains tag naming and reconciliation settings.
type Tags struct {
	Prefix                     string   `toml:"prefix"`
	ManagedPrefixes            []string `toml:"managed_prefixes"`
	IMAXConfidenceThreshold    float64  `toml:"imax_confidence_threshold"`
	EditionConfidenceThreshold float64  `toml:"edition_confidence_threshold"`
	MaxConcurrentItems         int      `toml:"max_concurrent_items"`
}

// Cache contains configuration for the classification cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics contains configuration for the Prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for MicroManagerr.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Sonarr/Radarr: remote library instances
//   - Probes: ffprobe, MediaInfo, and crop detection
//   - Classification: edition runtime threshold and marker policy
//   - Tags: tag prefix, managed namespace, and confidence thresholds
//   - Cache: classification cache keyed by file identity
//   - Metrics: Prometheus textfile output
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Sonarr         Instance       `toml:"sonarr"`
	Radarr         Instance       `toml:"radarr"`
	Probes         Probes         `toml:"probes"`
	Classification Classification `toml:"classification"`
	Tags           Tags           `toml:"tags"`
	Cache          Cache          `toml:"cache"`
	Metrics        Metrics        `toml:"metrics"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/micromanagerr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("micromanagerr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Instance returns the connection settings for the named application
// ("sonarr" or "radarr").
func (c *Config) Instance(app string) (Instance, error) {
	switch strings.ToLower(strings.TrimSpace(app)) {
	case "sonarr":
		return c.Sonarr, nil
	case "radarr":
		return c.Radarr, nil
	default:
		return Instance{}, fmt.Errorf("unknown application %q (want sonarr or radarr)", app)
	}
}

// SonarrConfigured reports whether a Sonarr instance is set up.
func (c *Config) SonarrConfigured() bool { return c.Sonarr.Configured() }

// RadarrConfigured reports whether a Radarr instance is set up.
func (c *Config) RadarrConfigured() bool { return c.Radarr.Configured() }

// CachePath returns the classification cache database location.
func (c *Config) CachePath() string {
	if strings.TrimSpace(c.Cache.Path) != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Paths.DataDir, "classifications.db")
}

// LockPath returns the lock file guarding concurrent tag application runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tags.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
