// Command micromanagerr probes media files for HDR, Dolby Vision, IMAX, and
// edition features and keeps matching tags on Sonarr series and Radarr
// movies.
//
// Typical use:
//
//	micromanagerr scan /movies/Film (2001)/Film.mkv --explain
//	micromanagerr tags plan --app radarr --target 12=/movies/Film (2001)/Film.mkv
//	micromanagerr tags apply --app radarr --target 12=/movies/Film (2001)/Film.mkv
package main
