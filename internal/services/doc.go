// Package services defines shared utilities consumed by the scan pipeline and
// the Sonarr/Radarr integration.
//
// Key responsibilities:
//   - Context helpers that stamp library item IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper. The markers cover the
//     failure taxonomy of the pipeline: malformed probe output, conflicting
//     evidence, unavailable remote state, and failed tag operations.
//   - IsRetryable and Outcome, which let callers decide between retrying later
//     and surfacing a failure for manual resolution.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform.
package services
