package evidence

import (
	"math"
	"regexp"
	"strings"
)

var imaxLabelPattern = regexp.MustCompile(`(?i)\bimax\b`)

// Normalize converts raw probe output into a MediaEvidence record.
//
// It fails with a *MalformedError (matching services.ErrMalformedProbeOutput)
// when the fields the source requires are absent or unparsable. Missing
// optional signals leave the corresponding field nil.
func Normalize(raw []byte, source Source) (MediaEvidence, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return MediaEvidence{}, malformed(source, "empty output", nil)
	}
	switch source {
	case SourceContainer:
		return normalizeContainer(raw)
	case SourceStream:
		return normalizeStream(raw)
	case SourceCrop:
		return normalizeCrop(raw)
	default:
		return MediaEvidence{}, malformed(source, "unknown source", nil)
	}
}

// labelMentionsIMAX reports whether a track title or format label names IMAX.
func labelMentionsIMAX(labels ...string) bool {
	for _, label := range labels {
		if imaxLabelPattern.MatchString(label) {
			return true
		}
	}
	return false
}

// imaxMarkers returns nil when neither signal is present so an absent record
// stays distinguishable from an explicit negative.
func imaxMarkers(aspect, audio bool) *IMAXMarkers {
	if !aspect && !audio {
		return nil
	}
	return &IMAXMarkers{AspectHint: aspect, AudioTrackLabelMatch: audio}
}

func runtimePtr(seconds float64) *float64 {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil
	}
	return &seconds
}

// normalizeLanguage trims and lowercases; "und" means unknown.
func normalizeLanguage(value string) string {
	lang := strings.ToLower(strings.TrimSpace(value))
	if lang == "und" {
		return ""
	}
	return lang
}
