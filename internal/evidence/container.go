package evidence

import (
	"strings"

	"micromanagerr/internal/media/ffprobe"
)

const (
	sideDataDOVI         = "dovi configuration record"
	sideDataMastering    = "mastering display metadata"
	sideDataContentLight = "content light level metadata"
)

func normalizeContainer(raw []byte) (MediaEvidence, error) {
	result, err := ffprobe.Parse(raw)
	if err != nil {
		return MediaEvidence{}, malformed(SourceContainer, "unparsable json", err)
	}
	if len(result.Streams) == 0 {
		return MediaEvidence{}, malformed(SourceContainer, "no streams reported", nil)
	}

	ev := MediaEvidence{Source: SourceContainer}
	markers := markerSet{}
	var aspect, audioIMAX bool

	if video, ok := result.PrimaryVideo(); ok {
		ev.Codec = strings.TrimSpace(video.CodecName)
		ev.PixelFormat = strings.TrimSpace(video.PixFmt)
		if video.Width > 0 && video.Height > 0 {
			ev.Resolution = &Resolution{Width: video.Width, Height: video.Height}
			aspect = IsIMAXRatio(ev.Resolution.Ratio())
		}

		sideData := append([]ffprobe.SideData(nil), video.SideData...)
		for _, frame := range result.Frames {
			if frame.MediaType == "" || strings.EqualFold(frame.MediaType, "video") {
				sideData = append(sideData, frame.SideData...)
			}
		}

		var staticMetadata bool
		for _, sd := range sideData {
			kind := strings.ToLower(strings.TrimSpace(sd.Type))
			switch {
			case kind == sideDataDOVI:
				ev.DolbyVision = &DolbyVision{
					Profile:     sd.DVProfile,
					HasFallback: sd.DVBLSignalCompatibilityID != 0,
					RPUPresent:  sd.RPUPresentFlag == 1,
				}
			case kind == sideDataMastering, kind == sideDataContentLight:
				staticMetadata = true
			case strings.Contains(kind, "smpte2094-40"), strings.Contains(kind, "hdr10+"):
				markers.add(MarkerHDR10Plus)
			}
		}

		switch strings.ToLower(strings.TrimSpace(video.ColorTransfer)) {
		case "smpte2084":
			if staticMetadata {
				markers.add(MarkerHDR10)
			}
		case "arib-std-b67":
			markers.add(MarkerHLG)
		}
	}

	for _, stream := range result.StreamsOfType("audio") {
		track := Track{
			Language: normalizeLanguage(stream.Tag("language")),
			Codec:    strings.TrimSpace(stream.CodecName),
			Channels: stream.Channels,
			Title:    stream.Tag("title"),
		}
		ev.AudioTracks = append(ev.AudioTracks, track)
		if labelMentionsIMAX(track.Title, stream.Profile) {
			audioIMAX = true
		}
	}
	for _, stream := range result.StreamsOfType("subtitle") {
		ev.SubtitleTracks = append(ev.SubtitleTracks, Track{
			Language: normalizeLanguage(stream.Tag("language")),
			Codec:    strings.TrimSpace(stream.CodecName),
			Title:    stream.Tag("title"),
		})
	}

	ev.HDRMarkers = markers.sorted()
	ev.IMAX = imaxMarkers(aspect, audioIMAX)
	ev.RuntimeSeconds = runtimePtr(result.DurationSeconds())
	return ev, nil
}
