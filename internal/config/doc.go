// Package config loads, normalizes, and validates MicroManagerr configuration.
//
// Configuration is read from TOML (default ~/.config/micromanagerr/config.toml,
// falling back to ./micromanagerr.toml). Sonarr and Radarr credentials may be
// supplied through SONARR_URL, SONARR_API_KEY, RADARR_URL, and RADARR_API_KEY
// when absent from the file, and LOG_LEVEL overrides an unset logging level.
//
// An instance with neither URL nor key is simply not configured; scanning
// still works without either application.
package config
