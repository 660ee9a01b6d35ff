package classify

import (
	"fmt"
	"strings"

	"micromanagerr/internal/evidence"
)

// HDRKind is the resolved dynamic-range category of a file.
type HDRKind string

const (
	HDRNone           HDRKind = "None"
	HDR10             HDRKind = "HDR10"
	HDR10Plus         HDRKind = "HDR10Plus"
	HLG               HDRKind = "HLG"
	HybridHDR10PlusDV HDRKind = "HybridHDR10PlusDV"
)

// Signals recorded in provenance.
const (
	SignalAspectRatio     = "aspect-ratio"
	SignalAudioLabel      = "audio-label"
	SignalRuntimeDelta    = "runtime-delta"
	SignalFilenameKeyword = "filename-keyword"
)

// Edition labels used when only the runtime signal is present.
const (
	LabelLikelyExtended  = "likely-extended"
	LabelLikelyAlternate = "likely-alternate"
)

// HDR is the resolved HDR kind with the sources that established it.
type HDR struct {
	Kind    HDRKind           `json:"kind"`
	Sources []evidence.Source `json:"sources,omitempty"`
}

// DolbyVision is the resolved Dolby Vision layer.
type DolbyVision struct {
	Profile     int  `json:"profile"`
	HasFallback bool `json:"has_fallback"`
	// RPUConfirmed is true when at least one source reported an RPU.
	RPUConfirmed bool              `json:"rpu_confirmed"`
	Sources      []evidence.Source `json:"sources"`
}

// IMAX is the IMAX Enhanced verdict.
type IMAX struct {
	Enhanced   bool              `json:"enhanced"`
	Confidence float64           `json:"confidence"`
	Signals    []string          `json:"signals,omitempty"`
	Sources    []evidence.Source `json:"sources,omitempty"`
}

// EditionGuess is the inferred cut of the film.
type EditionGuess struct {
	Label               string            `json:"label"`
	RuntimeDeltaSeconds *float64          `json:"runtime_delta_seconds,omitempty"`
	MatchedKeyword      string            `json:"matched_keyword,omitempty"`
	Confidence          float64           `json:"confidence"`
	Signals             []string          `json:"signals"`
	Sources             []evidence.Source `json:"sources,omitempty"`
}

// Classification is the fused verdict for one file.
type Classification struct {
	HDR             HDR               `json:"hdr"`
	DolbyVision     *DolbyVision      `json:"dolby_vision,omitempty"`
	IMAX            IMAX              `json:"imax"`
	Edition         *EditionGuess     `json:"edition,omitempty"`
	RuntimeSeconds  *float64          `json:"runtime_seconds,omitempty"`
	EvidenceSources []evidence.Source `json:"evidence_sources"`
}

// HDRKind is shorthand for c.HDR.Kind.
func (c Classification) HDRKind() HDRKind {
	if c.HDR.Kind == "" {
		return HDRNone
	}
	return c.HDR.Kind
}

// Explain returns human-readable lines describing why each field was set.
func (c Classification) Explain() []string {
	var lines []string
	if kind := c.HDRKind(); kind != HDRNone {
		lines = append(lines, fmt.Sprintf("hdr %s: reported by %s", kind, joinSources(c.HDR.Sources)))
	}
	if dv := c.DolbyVision; dv != nil {
		fallback := "no fallback layer"
		if dv.HasFallback {
			fallback = "with fallback layer"
		}
		rpu := ""
		if !dv.RPUConfirmed {
			rpu = ", RPU not confirmed"
		}
		lines = append(lines, fmt.Sprintf("dolby vision profile %d %s%s: reported by %s", dv.Profile, fallback, rpu, joinSources(dv.Sources)))
	}
	if c.IMAX.Enhanced {
		lines = append(lines, fmt.Sprintf("imax enhanced (confidence %.1f): %s from %s",
			c.IMAX.Confidence, strings.Join(c.IMAX.Signals, " + "), joinSources(c.IMAX.Sources)))
	}
	if e := c.Edition; e != nil {
		detail := make([]string, 0, 2)
		if e.MatchedKeyword != "" {
			detail = append(detail, fmt.Sprintf("filename keyword %q", e.MatchedKeyword))
		}
		if e.RuntimeDeltaSeconds != nil {
			detail = append(detail, fmt.Sprintf("runtime delta %+.0fs", *e.RuntimeDeltaSeconds))
		}
		lines = append(lines, fmt.Sprintf("edition %s (confidence %.1f): %s", e.Label, e.Confidence, strings.Join(detail, ", ")))
	}
	return lines
}

func joinSources(sources []evidence.Source) string {
	if len(sources) == 0 {
		return "no source"
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
