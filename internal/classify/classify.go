package classify

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"micromanagerr/internal/evidence"
	"micromanagerr/internal/services"
)

// MarkerPolicy decides how HDR marker disagreement between sources resolves.
type MarkerPolicy string

const (
	// PolicyPresence counts a marker when any source reports it. Absence from
	// one tool is treated as that tool's blind spot.
	PolicyPresence MarkerPolicy = "presence"
	// PolicyUnanimous counts a marker only when every source able to observe
	// dynamic range reports it.
	PolicyUnanimous MarkerPolicy = "unanimous"
)

// DefaultRuntimeThresholdSeconds is the edition runtime delta threshold.
const DefaultRuntimeThresholdSeconds = 300

// Options carries the caller-supplied inputs for one classification.
type Options struct {
	// ReferenceRuntimeSeconds is the expected theatrical runtime from an
	// external lookup. Nil disables the runtime signal.
	ReferenceRuntimeSeconds *float64
	// FilenameHint is matched against the edition vocabulary. The engine
	// never parses paths itself.
	FilenameHint            string
	RuntimeThresholdSeconds float64
	MarkerPolicy            MarkerPolicy
}

func (o Options) threshold() float64 {
	if o.RuntimeThresholdSeconds <= 0 {
		return DefaultRuntimeThresholdSeconds
	}
	return o.RuntimeThresholdSeconds
}

// Classify fuses evidence from one or more probes into a single verdict.
//
// The fold is order-independent: every rule is a set operation or picks by
// source rank. Conflicting Dolby Vision profiles fail with *ConflictError;
// every other ambiguity degrades to confidence scoring.
func Classify(records []evidence.MediaEvidence, opts Options) (Classification, error) {
	if len(records) == 0 {
		return Classification{}, services.Wrap(services.ErrValidation, "classify", "fuse evidence", "no evidence records", nil)
	}
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b evidence.MediaEvidence) int {
		return a.Source.Rank() - b.Source.Rank()
	})

	dv, err := resolveDolbyVision(ordered)
	if err != nil {
		return Classification{}, err
	}

	out := Classification{
		DolbyVision:     dv,
		IMAX:            resolveIMAX(ordered),
		RuntimeSeconds:  resolveRuntime(ordered),
		EvidenceSources: evidenceSources(ordered),
	}
	out.HDR = resolveHDR(ordered, dv, opts.MarkerPolicy)

	if guess := guessEdition(out.RuntimeSeconds, opts.ReferenceRuntimeSeconds, opts.FilenameHint, opts.threshold()); guess != nil {
		if slices.Contains(guess.Signals, SignalRuntimeDelta) {
			guess.Sources = runtimeSources(ordered)
		}
		out.Edition = guess
	}
	return out, nil
}

// markerSources returns, per marker, the sources that count it under policy.
func markerSources(records []evidence.MediaEvidence, policy MarkerPolicy) map[evidence.HDRMarker][]evidence.Source {
	reported := make(map[evidence.HDRMarker][]evidence.Source)
	observers := 0
	for _, rec := range records {
		if rec.Source.ObservesDynamicRange() {
			observers++
		}
		for _, marker := range rec.HDRMarkers {
			reported[marker] = appendSource(reported[marker], rec.Source)
		}
	}
	if policy != PolicyUnanimous {
		return reported
	}
	counted := make(map[evidence.HDRMarker][]evidence.Source)
	for marker, sources := range reported {
		seen := 0
		for _, rec := range records {
			if rec.Source.ObservesDynamicRange() && rec.HasMarker(marker) {
				seen++
			}
		}
		if observers > 0 && seen == observers {
			counted[marker] = sources
		}
	}
	return counted
}

func resolveHDR(records []evidence.MediaEvidence, dv *DolbyVision, policy MarkerPolicy) HDR {
	markers := markerSources(records, policy)
	if plus, ok := markers[evidence.MarkerHDR10Plus]; ok && dv != nil && dv.HasFallback {
		sources := slices.Clone(plus)
		for _, s := range dv.Sources {
			sources = appendSource(sources, s)
		}
		sortSources(sources)
		return HDR{Kind: HybridHDR10PlusDV, Sources: sources}
	}
	for _, candidate := range []struct {
		marker evidence.HDRMarker
		kind   HDRKind
	}{
		{evidence.MarkerHDR10Plus, HDR10Plus},
		{evidence.MarkerHDR10, HDR10},
		{evidence.MarkerHLG, HLG},
	} {
		if sources, ok := markers[candidate.marker]; ok {
			return HDR{Kind: candidate.kind, Sources: sources}
		}
	}
	return HDR{Kind: HDRNone}
}

func resolveDolbyVision(records []evidence.MediaEvidence) (*DolbyVision, error) {
	var reports, rpu []evidence.MediaEvidence
	for _, rec := range records {
		if rec.DolbyVision == nil {
			continue
		}
		reports = append(reports, rec)
		if rec.DolbyVision.RPUPresent {
			rpu = append(rpu, rec)
		}
	}
	if len(reports) == 0 {
		return nil, nil
	}

	var conflict []ConflictValue
	profiles := make(map[int]struct{})
	for _, rec := range reports {
		if p := rec.DolbyVision.Profile; p > 0 {
			profiles[p] = struct{}{}
			conflict = append(conflict, ConflictValue{Source: rec.Source, Value: strconv.Itoa(p)})
		}
	}
	if len(profiles) > 1 {
		return nil, &ConflictError{Field: "dolby_vision.profile", Values: conflict}
	}

	basis := reports
	if len(rpu) > 0 {
		basis = rpu
	}
	dv := &DolbyVision{RPUConfirmed: len(rpu) > 0}
	for _, rec := range basis {
		if rec.DolbyVision.Profile > 0 {
			dv.Profile = rec.DolbyVision.Profile
		}
		dv.Sources = appendSource(dv.Sources, rec.Source)
	}
	if dv.Profile == 0 {
		for p := range profiles {
			dv.Profile = p
		}
	}
	for _, rec := range reports {
		if rec.DolbyVision.HasFallback {
			dv.HasFallback = true
			dv.Sources = appendSource(dv.Sources, rec.Source)
		}
	}
	sortSources(dv.Sources)
	return dv, nil
}

const (
	imaxConfidenceBoth   = 1.0
	imaxConfidenceSingle = 0.5
)

func resolveIMAX(records []evidence.MediaEvidence) IMAX {
	var aspect, audio bool
	var sources []evidence.Source
	for _, rec := range records {
		if rec.IMAX == nil {
			continue
		}
		if rec.IMAX.AspectHint {
			aspect = true
		}
		if rec.IMAX.AudioTrackLabelMatch {
			audio = true
		}
		if rec.IMAX.AspectHint || rec.IMAX.AudioTrackLabelMatch {
			sources = appendSource(sources, rec.Source)
		}
	}
	var out IMAX
	if aspect {
		out.Signals = append(out.Signals, SignalAspectRatio)
	}
	if audio {
		out.Signals = append(out.Signals, SignalAudioLabel)
	}
	switch len(out.Signals) {
	case 2:
		out.Confidence = imaxConfidenceBoth
	case 1:
		out.Confidence = imaxConfidenceSingle
	default:
		return IMAX{}
	}
	out.Enhanced = true
	out.Sources = sources
	return out
}

// resolveRuntime picks the runtime from the lowest-ranked source reporting
// one. records must already be in rank order.
func resolveRuntime(records []evidence.MediaEvidence) *float64 {
	for _, rec := range records {
		if rec.RuntimeSeconds != nil {
			v := *rec.RuntimeSeconds
			return &v
		}
	}
	return nil
}

func runtimeSources(records []evidence.MediaEvidence) []evidence.Source {
	for _, rec := range records {
		if rec.RuntimeSeconds != nil {
			return []evidence.Source{rec.Source}
		}
	}
	return nil
}

func evidenceSources(records []evidence.MediaEvidence) []evidence.Source {
	var out []evidence.Source
	for _, rec := range records {
		out = appendSource(out, rec.Source)
	}
	return out
}

func appendSource(list []evidence.Source, s evidence.Source) []evidence.Source {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func sortSources(list []evidence.Source) {
	slices.SortFunc(list, func(a, b evidence.Source) int {
		if d := a.Rank() - b.Rank(); d != 0 {
			return d
		}
		return strings.Compare(string(a), string(b))
	})
}

// Summary renders a one-line description used in logs and tables.
func (c Classification) Summary() string {
	parts := []string{string(c.HDRKind())}
	if dv := c.DolbyVision; dv != nil {
		label := fmt.Sprintf("DV P%d", dv.Profile)
		if dv.HasFallback {
			label += "+fallback"
		}
		parts = append(parts, label)
	}
	if c.IMAX.Enhanced {
		parts = append(parts, fmt.Sprintf("IMAX %.1f", c.IMAX.Confidence))
	}
	if c.Edition != nil {
		parts = append(parts, fmt.Sprintf("%s %.1f", c.Edition.Label, c.Edition.Confidence))
	}
	return strings.Join(parts, ", ")
}
