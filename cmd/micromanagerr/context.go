package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/config"
	"micromanagerr/internal/logging"
	"micromanagerr/internal/metrics"
	"micromanagerr/internal/scancache"
	"micromanagerr/internal/tagsync"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	metrics *metrics.Metrics
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		metrics:      metrics.New(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// log returns the process logger, falling back to stderr console output
// when configuration is unavailable.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
		}
		c.logger = logger
	})
	return c.logger
}

// arrClient builds a client for the named app from configuration.
func (c *commandContext) arrClient(app string) (*arr.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	kind, err := arr.ParseKind(app)
	if err != nil {
		return nil, err
	}
	inst, err := cfg.Instance(string(kind))
	if err != nil {
		return nil, err
	}
	if !inst.Configured() {
		return nil, fmt.Errorf("%s is not configured; set [%s] url and api_key (or %s_URL / %s_API_KEY)",
			kind, kind, strings.ToUpper(string(kind)), strings.ToUpper(string(kind)))
	}
	return arr.New(kind, inst.URL, inst.APIKey,
		arr.WithTimeout(time.Duration(inst.TimeoutSeconds)*time.Second),
		arr.WithLogger(c.log()),
	)
}

// openCache returns nil when caching is disabled or the database cannot be
// opened; scans then run uncached.
func (c *commandContext) openCache(cmd *cobra.Command, disabled bool) *scancache.Store {
	cfg := c.configValue()
	if cfg == nil || disabled || !cfg.Cache.Enabled {
		return nil
	}
	store, err := scancache.Open(cmd.Context(), cfg.CachePath())
	if err != nil {
		logging.WarnWithContext(c.log(), "classification cache unavailable", "cache_open_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, cfg.CachePath()),
			logging.String(logging.FieldImpact, "files are probed without caching"),
		)
		return nil
	}
	return store
}

func (c *commandContext) tagOptions() tagsync.Options {
	cfg := c.configValue()
	if cfg == nil {
		return tagsync.DefaultOptions()
	}
	return tagsync.Options{
		Prefix:           cfg.Tags.Prefix,
		ManagedPrefixes:  cfg.Tags.ManagedPrefixes,
		IMAXThreshold:    cfg.Tags.IMAXConfidenceThreshold,
		EditionThreshold: cfg.Tags.EditionConfidenceThreshold,
	}
}

func (c *commandContext) flushMetrics() error {
	if c.config == nil {
		return nil
	}
	if err := c.metrics.WriteTextfile(c.config.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("export metrics: %w", err)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

var errPartialFailure = errors.New("completed with failures")
