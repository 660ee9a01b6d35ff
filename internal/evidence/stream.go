package evidence

import (
	"regexp"
	"strconv"
	"strings"

	"micromanagerr/internal/media/mediainfo"
)

var dvProfilePattern = regexp.MustCompile(`(?i)\bdv[a-z0-9]{2}\.(\d{1,2})`)

// legacyMillisecondThreshold separates MediaInfo releases that report
// Duration in integer milliseconds from those that use decimal seconds.
// No feature runs for more than ~28 hours, so larger integers are milliseconds.
const legacyMillisecondThreshold = 100000

func normalizeStream(raw []byte) (MediaEvidence, error) {
	result, err := mediainfo.Parse(raw)
	if err != nil {
		return MediaEvidence{}, malformed(SourceStream, "unparsable json", err)
	}
	if result.Media == nil || len(result.Media.Tracks) == 0 {
		return MediaEvidence{}, malformed(SourceStream, "no tracks reported", nil)
	}

	ev := MediaEvidence{Source: SourceStream}
	markers := markerSet{}
	var aspect, audioIMAX bool

	if general, ok := result.General(); ok {
		if general.Duration.String() != "" {
			seconds, ok := parseMediaInfoDuration(general.Duration.String())
			if !ok {
				return MediaEvidence{}, malformed(SourceStream, "unparsable duration "+strconv.Quote(general.Duration.String()), nil)
			}
			ev.RuntimeSeconds = runtimePtr(seconds)
		}
	}

	if videos := result.Tracks("Video"); len(videos) > 0 {
		video := videos[0]
		ev.Codec = strings.ToLower(video.Format.String())
		ev.PixelFormat = pixelFormat(video)
		width, wok := video.Width.Int()
		height, hok := video.Height.Int()
		if wok && hok && width > 0 && height > 0 {
			ev.Resolution = &Resolution{Width: width, Height: height}
			aspect = IsIMAXRatio(ev.Resolution.Ratio())
		}
		ev.DolbyVision = streamDolbyVision(video)
		for _, marker := range streamMarkers(video) {
			markers.add(marker)
		}
	}

	for _, audio := range result.Tracks("Audio") {
		channels, _ := audio.Channels.Int()
		track := Track{
			Language: normalizeLanguage(audio.Language.String()),
			Codec:    audio.Format.String(),
			Channels: channels,
			Title:    audio.Title.String(),
		}
		ev.AudioTracks = append(ev.AudioTracks, track)
		if labelMentionsIMAX(track.Title, audio.FormatCommercial.String(), audio.FormatProfile.String()) {
			audioIMAX = true
		}
	}
	for _, text := range result.Tracks("Text") {
		ev.SubtitleTracks = append(ev.SubtitleTracks, Track{
			Language: normalizeLanguage(text.Language.String()),
			Codec:    text.Format.String(),
			Title:    text.Title.String(),
		})
	}

	ev.HDRMarkers = markers.sorted()
	ev.IMAX = imaxMarkers(aspect, audioIMAX)
	return ev, nil
}

// parseMediaInfoDuration handles both unit conventions: decimal seconds
// ("8400.512") and legacy integer milliseconds ("8400512").
func parseMediaInfoDuration(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, ".") {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		if ms >= legacyMillisecondThreshold {
			return float64(ms) / 1000, true
		}
		return float64(ms), true
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

func pixelFormat(video mediainfo.Track) string {
	parts := make([]string, 0, 2)
	if cs := video.ChromaSubsampling.String(); cs != "" {
		parts = append(parts, cs)
	}
	if depth := video.BitDepth.String(); depth != "" {
		parts = append(parts, depth+"bit")
	}
	return strings.Join(parts, " ")
}

// hdrTokens splits the HDR_Format family of fields into individual entries.
// MediaInfo separates per-layer values with " / " and older releases pack
// details into a comma list.
func hdrTokens(values ...string) []string {
	var tokens []string
	for _, value := range values {
		for _, layer := range strings.Split(value, "/") {
			for _, token := range strings.Split(layer, ",") {
				if token = strings.TrimSpace(token); token != "" {
					tokens = append(tokens, token)
				}
			}
		}
	}
	return tokens
}

func streamMarkers(video mediainfo.Track) []HDRMarker {
	markers := markerSet{}
	tokens := hdrTokens(video.HDRFormat.String(), video.HDRFormatCompatibility.String())
	for _, token := range tokens {
		upper := strings.ToUpper(token)
		switch {
		case strings.Contains(upper, "SMPTE ST 2094 APP 4"), strings.HasPrefix(upper, "HDR10+"):
			markers.add(MarkerHDR10Plus)
		case strings.Contains(upper, "SMPTE ST 2086"), upper == "HDR10", strings.HasPrefix(upper, "HDR10 "):
			markers.add(MarkerHDR10)
		case strings.HasPrefix(upper, "HLG"):
			markers.add(MarkerHLG)
		}
	}
	if strings.EqualFold(video.TransferCharacteristics.String(), "HLG") {
		markers.add(MarkerHLG)
	}
	return markers.sorted()
}

func streamDolbyVision(video mediainfo.Track) *DolbyVision {
	format := video.HDRFormat.String()
	if !strings.Contains(strings.ToLower(format), "dolby vision") {
		return nil
	}
	dv := &DolbyVision{}
	all := strings.Join([]string{format, video.HDRFormatProfile.String(), video.HDRFormatSettings.String()}, " , ")
	if m := dvProfilePattern.FindStringSubmatch(all); m != nil {
		if profile, err := strconv.Atoi(m[1]); err == nil {
			dv.Profile = profile
		}
	}
	dv.RPUPresent = strings.Contains(strings.ToUpper(all), "RPU")

	// Compatibility lists one entry per HDR_Format layer; the first belongs to
	// Dolby Vision. Older releases embed "HDR10 compatible" in the format text.
	compat := strings.TrimSpace(strings.Split(video.HDRFormatCompatibility.String(), "/")[0])
	switch {
	case compat != "" && !strings.EqualFold(compat, "none"):
		dv.HasFallback = true
	case strings.Contains(strings.ToLower(format), "compatible"):
		dv.HasFallback = true
	}
	return dv
}
