// Package probe wraps the external inspection tools behind the Adapter
// interface: ffprobe (container-metadata), MediaInfo (stream-inspector), and
// drapto crop detection (crop-detector).
//
// Adapters return raw output only; interpretation belongs to the evidence
// package. Execution failures are marked services.ErrExternalTool, or
// services.ErrTimeout when the caller's deadline expired.
package probe
