// Package arr is a small Sonarr/Radarr v3 API client covering what tag
// reconciliation needs: the tag catalog, item tag sets, bulk tag edits, and
// status/listing routes for the CLI.
//
// Failures to reach or authenticate against an instance are returned as
// *UnavailableError (matching services.ErrRemoteStateUnavailable). Other
// non-success responses are *StatusError.
package arr
