package evidence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	imaxExpandedRatio = 1.90
	ratioTolerance    = 0.02
)

// ParseCropFilter extracts a rectangle from "crop=W:H:X:Y" or "W:H:X:Y".
// Offsets default to zero when only "W:H" is given.
func ParseCropFilter(filter string) (Rect, bool) {
	s := strings.TrimSpace(filter)
	s = strings.TrimPrefix(s, "crop=")
	if s == "" {
		return Rect{}, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return Rect{}, false
	}
	values := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return Rect{}, false
		}
		values[i] = v
	}
	rect := Rect{Width: values[0], Height: values[1], X: values[2], Y: values[3]}
	if rect.Width == 0 || rect.Height == 0 {
		return Rect{}, false
	}
	return rect, true
}

// Ratio returns width/height of the rectangle.
func (r Rect) Ratio() float64 {
	return Resolution{Width: r.Width, Height: r.Height}.Ratio()
}

// IsIMAXRatio reports whether ratio is within 2% of the 1.90:1 expanded IMAX frame.
func IsIMAXRatio(ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	return math.Abs(ratio-imaxExpandedRatio)/imaxExpandedRatio <= ratioTolerance
}

// MatchStandardRatio returns a human-readable name for the closest standard
// aspect ratio within 2% tolerance, or a numeric label like "1.78:1".
func MatchStandardRatio(ratio float64) string {
	if ratio <= 0 {
		return "unknown"
	}
	standards := []struct {
		name  string
		value float64
	}{
		{"4:3", 4.0 / 3.0},
		{"1.43:1 (IMAX)", 1.43},
		{"16:9", 16.0 / 9.0},
		{"1.85:1", 1.85},
		{"1.90:1 (IMAX)", imaxExpandedRatio},
		{"2.00:1", 2.00},
		{"2.20:1", 2.20},
		{"2.39:1", 2.39},
	}
	bestName := ""
	bestDist := math.MaxFloat64
	for _, s := range standards {
		if dist := math.Abs(ratio - s.value); dist < bestDist {
			bestDist = dist
			bestName = s.name
		}
	}
	if bestDist/ratio <= ratioTolerance {
		return bestName
	}
	return fmt.Sprintf("%.2f:1", ratio)
}

// DetectedAspectRatio names the ratio of the first detected crop among
// records, or "" when no crop was reported.
func DetectedAspectRatio(records []MediaEvidence) string {
	for _, rec := range records {
		if rec.CropRect != nil {
			return MatchStandardRatio(rec.CropRect.Ratio())
		}
	}
	return ""
}
