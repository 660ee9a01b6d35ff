package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Value is a MediaInfo field. The JSON output encodes nearly everything as
// strings but some builds emit bare numbers, so both are accepted.
type Value string

// UnmarshalJSON accepts strings, numbers, and booleans.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(strings.TrimSpace(s))
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*v = ""
		return nil
	}
	*v = Value(string(data))
	return nil
}

// String returns the trimmed value.
func (v Value) String() string { return strings.TrimSpace(string(v)) }

// Int parses the value as an integer. Non-numeric values yield false.
func (v Value) Int() (int, bool) {
	s := v.String()
	if s == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// Float parses the value as a float. Non-numeric values yield false.
func (v Value) Float() (float64, bool) {
	s := v.String()
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Track is one entry of media.track.
type Track struct {
	Type                    Value `json:"@type"`
	Format                  Value `json:"Format"`
	FormatProfile           Value `json:"Format_Profile"`
	FormatCommercial        Value `json:"Format_Commercial_IfAny"`
	Duration                Value `json:"Duration"`
	Width                   Value `json:"Width"`
	Height                  Value `json:"Height"`
	ChromaSubsampling       Value `json:"ChromaSubsampling"`
	BitDepth                Value `json:"BitDepth"`
	ColorSpace              Value `json:"ColorSpace"`
	TransferCharacteristics Value `json:"transfer_characteristics"`
	HDRFormat               Value `json:"HDR_Format"`
	HDRFormatProfile        Value `json:"HDR_Format_Profile"`
	HDRFormatSettings       Value `json:"HDR_Format_Settings"`
	HDRFormatCompatibility  Value `json:"HDR_Format_Compatibility"`
	Channels                Value `json:"Channels"`
	Language                Value `json:"Language"`
	Title                   Value `json:"Title"`
}

// Media wraps the track list.
type Media struct {
	Ref    string  `json:"@ref"`
	Tracks []Track `json:"track"`
}

// Result is a decoded MediaInfo JSON document.
type Result struct {
	Media *Media `json:"media"`
}

// Run executes mediainfo against path and returns the raw JSON document.
func Run(ctx context.Context, binary string, path string) ([]byte, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "mediainfo"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("mediainfo inspect: empty path")
	}
	cmd := commandContext(ctx, binary, "--Output=JSON", path) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("mediainfo inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// Parse decodes a MediaInfo JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("mediainfo parse: %w", err)
	}
	return result, nil
}

// Tracks returns every track of the given @type (General, Video, Audio, Text).
func (r Result) Tracks(kind string) []Track {
	if r.Media == nil {
		return nil
	}
	var out []Track
	for _, track := range r.Media.Tracks {
		if strings.EqualFold(track.Type.String(), kind) {
			out = append(out, track)
		}
	}
	return out
}

// General returns the General track when present.
func (r Result) General() (Track, bool) {
	tracks := r.Tracks("General")
	if len(tracks) == 0 {
		return Track{}, false
	}
	return tracks[0], true
}
