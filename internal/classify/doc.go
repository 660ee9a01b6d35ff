// Package classify fuses MediaEvidence from several probes into one
// Classification: HDR kind, Dolby Vision profile, IMAX Enhanced confidence,
// and an edition guess.
//
// Classify is a pure function. It never touches the filesystem or the
// network, and the only hard failure is a Dolby Vision profile conflict,
// returned as *ConflictError so the caller sees both values with their
// sources. Marker disagreement between probes follows MarkerPolicy.
package classify
