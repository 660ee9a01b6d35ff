// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Run executes the tool and returns its raw JSON; Parse decodes a document
// into Result, which exposes streams, first-frame side data, and container
// metadata. Inspect combines both. Side data decoding is limited to what the
// dynamic-range detection needs: Dolby Vision configuration records,
// mastering display and content light level entries, and HDR10+ dynamic
// metadata.
package ffprobe
