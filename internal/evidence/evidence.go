package evidence

import "slices"

// Source identifies the probe that produced a MediaEvidence record.
type Source string

const (
	SourceContainer Source = "container-metadata"
	SourceStream    Source = "stream-inspector"
	SourceCrop      Source = "crop-detector"
)

// Sources lists every known source in rank order.
var Sources = []Source{SourceContainer, SourceStream, SourceCrop}

// ObservesDynamicRange reports whether the source can see HDR metadata at all.
// A source that cannot observe dynamic range never counts as reporting
// absence of a marker.
func (s Source) ObservesDynamicRange() bool {
	return s == SourceContainer || s == SourceStream
}

// Rank orders sources for deterministic preference (lower wins).
func (s Source) Rank() int {
	if i := slices.Index(Sources, s); i >= 0 {
		return i
	}
	return len(Sources)
}

// HDRMarker is a static or dynamic HDR metadata standard.
type HDRMarker string

const (
	MarkerHDR10     HDRMarker = "HDR10"
	MarkerHDR10Plus HDRMarker = "HDR10+"
	MarkerHLG       HDRMarker = "HLG"
)

// Resolution is the coded frame size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ratio returns width/height, or 0 when undefined.
func (r Resolution) Ratio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// DolbyVision is a raw Dolby Vision report from one probe.
type DolbyVision struct {
	// Profile is 0 when the probe saw Dolby Vision but could not read the profile.
	Profile     int  `json:"profile"`
	HasFallback bool `json:"has_fallback"`
	RPUPresent  bool `json:"rpu_present"`
}

// IMAXMarkers records IMAX Enhanced signals seen by one probe.
type IMAXMarkers struct {
	AspectHint           bool `json:"aspect_hint"`
	AudioTrackLabelMatch bool `json:"audio_track_label_match"`
}

// Rect is a crop rectangle in pixels.
type Rect struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Track is an audio or subtitle track.
type Track struct {
	Language string `json:"language,omitempty"`
	Codec    string `json:"codec,omitempty"`
	Channels int    `json:"channels,omitempty"`
	Title    string `json:"title,omitempty"`
}

// MediaEvidence is the canonical output of one probe for one file.
//
// Records are values. Normalize copies everything it stores and nothing in
// this repository modifies a record after it is returned; consumers that need
// to change a field must work on a copy produced by Clone.
type MediaEvidence struct {
	Source         Source       `json:"source"`
	Codec          string       `json:"codec,omitempty"`
	PixelFormat    string       `json:"pixel_format,omitempty"`
	Resolution     *Resolution  `json:"resolution,omitempty"`
	HDRMarkers     []HDRMarker  `json:"hdr_markers,omitempty"`
	DolbyVision    *DolbyVision `json:"dolby_vision,omitempty"`
	IMAX           *IMAXMarkers `json:"imax_markers,omitempty"`
	RuntimeSeconds *float64     `json:"runtime_seconds,omitempty"`
	CropRect       *Rect        `json:"crop_rect,omitempty"`
	AudioTracks    []Track      `json:"audio_tracks,omitempty"`
	SubtitleTracks []Track      `json:"subtitle_tracks,omitempty"`
}

// HasMarker reports whether the record carries marker.
func (e MediaEvidence) HasMarker(marker HDRMarker) bool {
	return slices.Contains(e.HDRMarkers, marker)
}

// Clone returns a deep copy.
func (e MediaEvidence) Clone() MediaEvidence {
	out := e
	out.Resolution = clonePtr(e.Resolution)
	out.DolbyVision = clonePtr(e.DolbyVision)
	out.IMAX = clonePtr(e.IMAX)
	out.RuntimeSeconds = clonePtr(e.RuntimeSeconds)
	out.CropRect = clonePtr(e.CropRect)
	out.HDRMarkers = slices.Clone(e.HDRMarkers)
	out.AudioTracks = slices.Clone(e.AudioTracks)
	out.SubtitleTracks = slices.Clone(e.SubtitleTracks)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// markerSet accumulates HDR markers and emits them sorted and unique.
type markerSet map[HDRMarker]struct{}

func (m markerSet) add(marker HDRMarker) { m[marker] = struct{}{} }

func (m markerSet) sorted() []HDRMarker {
	if len(m) == 0 {
		return nil
	}
	out := make([]HDRMarker, 0, len(m))
	for marker := range m {
		out = append(out, marker)
	}
	slices.Sort(out)
	return out
}
