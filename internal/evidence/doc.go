// Package evidence defines MediaEvidence, the canonical per-probe record, and
// the normalizer that builds it from raw tool output.
//
// Three sources are understood:
//   - container-metadata: ffprobe JSON (streams, first-frame side data, format)
//   - stream-inspector: MediaInfo JSON
//   - crop-detector: the CropReport document written by the crop probe
//
// Normalize tolerates unit and layout drift between tool releases (MediaInfo
// duration units, crop rectangles as strings, objects, arrays, or separate
// fields) and reports missing required data as *MalformedError.
package evidence
