package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CropReport is the JSON document the crop-detection probe emits.
type CropReport struct {
	VideoWidth     int             `json:"video_width"`
	VideoHeight    int             `json:"video_height"`
	Crop           string          `json:"crop,omitempty"`
	Required       bool            `json:"required"`
	MultipleRatios bool            `json:"multiple_ratios"`
	Candidates     []CropCandidate `json:"candidates,omitempty"`
}

// CropCandidate is one crop value observed while sampling.
type CropCandidate struct {
	Crop    string  `json:"crop"`
	Percent float64 `json:"percent"`
}

// cropDocument is the tolerant decoding shape. Older detector builds report
// the rectangle as separate integer fields, an object, or an array.
type cropDocument struct {
	VideoWidth     int             `json:"video_width"`
	VideoHeight    int             `json:"video_height"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Crop           json.RawMessage `json:"crop"`
	CropWidth      *int            `json:"crop_width"`
	CropHeight     *int            `json:"crop_height"`
	CropX          *int            `json:"crop_x"`
	CropY          *int            `json:"crop_y"`
	MultipleRatios bool            `json:"multiple_ratios"`
	Candidates     []CropCandidate `json:"candidates"`
}

type cropObject struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
	W      *int `json:"w"`
	H      *int `json:"h"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
}

func normalizeCrop(raw []byte) (MediaEvidence, error) {
	var doc cropDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return MediaEvidence{}, malformed(SourceCrop, "unparsable json", err)
	}
	width, height := doc.VideoWidth, doc.VideoHeight
	if width == 0 && height == 0 {
		width, height = doc.Width, doc.Height
	}
	if width <= 0 || height <= 0 {
		return MediaEvidence{}, malformed(SourceCrop, "missing video dimensions", nil)
	}

	rect, present, err := decodeCropRect(doc)
	if err != nil {
		return MediaEvidence{}, malformed(SourceCrop, "unparsable crop rectangle", err)
	}

	ev := MediaEvidence{
		Source:     SourceCrop,
		Resolution: &Resolution{Width: width, Height: height},
	}
	effective := ev.Resolution.Ratio()
	if present {
		if rect.Width > width || rect.Height > height {
			return MediaEvidence{}, malformed(SourceCrop, fmt.Sprintf("crop %dx%d exceeds frame %dx%d", rect.Width, rect.Height, width, height), nil)
		}
		if rect.Width != width || rect.Height != height {
			ev.CropRect = &rect
		}
		effective = rect.Ratio()
	}

	aspect := IsIMAXRatio(effective)
	if !aspect && doc.MultipleRatios {
		for _, candidate := range doc.Candidates {
			if r, ok := ParseCropFilter(candidate.Crop); ok && IsIMAXRatio(r.Ratio()) {
				aspect = true
				break
			}
		}
	}
	ev.IMAX = imaxMarkers(aspect, false)
	return ev, nil
}

// decodeCropRect returns the rectangle and whether one was reported.
func decodeCropRect(doc cropDocument) (Rect, bool, error) {
	if doc.CropWidth != nil || doc.CropHeight != nil {
		if doc.CropWidth == nil || doc.CropHeight == nil {
			return Rect{}, false, fmt.Errorf("crop_width and crop_height must both be set")
		}
		rect := Rect{Width: *doc.CropWidth, Height: *doc.CropHeight}
		if doc.CropX != nil {
			rect.X = *doc.CropX
		}
		if doc.CropY != nil {
			rect.Y = *doc.CropY
		}
		return validRect(rect)
	}

	data := bytes.TrimSpace(doc.Crop)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Rect{}, false, nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Rect{}, false, err
		}
		if s == "" {
			return Rect{}, false, nil
		}
		rect, ok := ParseCropFilter(s)
		if !ok {
			return Rect{}, false, fmt.Errorf("crop value %q", s)
		}
		return rect, true, nil
	case '[':
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return Rect{}, false, err
		}
		if len(values) != 4 {
			return Rect{}, false, fmt.Errorf("crop array needs 4 values, got %d", len(values))
		}
		return validRect(Rect{Width: values[0], Height: values[1], X: values[2], Y: values[3]})
	case '{':
		var obj cropObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return Rect{}, false, err
		}
		w, h := obj.Width, obj.Height
		if w == nil {
			w = obj.W
		}
		if h == nil {
			h = obj.H
		}
		if w == nil || h == nil {
			return Rect{}, false, fmt.Errorf("crop object missing width or height")
		}
		return validRect(Rect{Width: *w, Height: *h, X: obj.X, Y: obj.Y})
	default:
		return Rect{}, false, fmt.Errorf("unsupported crop encoding")
	}
}

func validRect(rect Rect) (Rect, bool, error) {
	if rect.Width <= 0 || rect.Height <= 0 || rect.X < 0 || rect.Y < 0 {
		return Rect{}, false, fmt.Errorf("invalid crop %d:%d:%d:%d", rect.Width, rect.Height, rect.X, rect.Y)
	}
	return rect, true, nil
}
