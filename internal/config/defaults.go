package config

const (
	defaultDataDir                    = "~/.local/share/micromanagerr"
	defaultLogDir                     = "~/.local/share/micromanagerr/logs"
	defaultFFprobeBinary              = "ffprobe"
	defaultMediaInfoBinary            = "mediainfo"
	defaultProbeTimeoutSeconds        = 120
	defaultProbeMaxConcurrent         = 2
	defaultInstanceTimeoutSeconds     = 30
	defaultRuntimeThresholdSeconds    = 300
	defaultMarkerPolicy               = "presence"
	defaultIMAXConfidenceThreshold    = 0.5
	defaultEditionConfidenceThreshold = 0.5
	defaultMaxConcurrentItems         = 4
	defaultManagedPrefix              = "mm:"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Sonarr: Instance{TimeoutSeconds: defaultInstanceTimeoutSeconds},
		Radarr: Instance{TimeoutSeconds: defaultInstanceTimeoutSeconds},
		Probes: Probes{
			FFprobeBinary:        defaultFFprobeBinary,
			MediaInfoBinary:      defaultMediaInfoBinary,
			MediaInfoEnabled:     true,
			CropDetectionEnabled: true,
			TimeoutSeconds:       defaultProbeTimeoutSeconds,
			MaxConcurrent:        defaultProbeMaxConcurrent,
		},
		Classification: Classification{
			RuntimeThresholdSeconds: defaultRuntimeThresholdSeconds,
			MarkerPolicy:            defaultMarkerPolicy,
		},
		Tags: Tags{
			ManagedPrefixes:            []string{defaultManagedPrefix},
			IMAXConfidenceThreshold:    defaultIMAXConfidenceThreshold,
			EditionConfidenceThreshold: defaultEditionConfidenceThreshold,
			MaxConcurrentItems:         defaultMaxConcurrentItems,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
		},
	}
}
