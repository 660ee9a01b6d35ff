package probe

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	draptolib "github.com/five82/drapto"

	"micromanagerr/internal/evidence"
)

var errEmptyResult = errors.New("crop detection returned no result")

// DetectFunc runs crop detection on a file.
type DetectFunc func(ctx context.Context, path string) (*draptolib.CropDetectionResult, error)

// CropDetector is the crop-detector adapter. It samples frames through the
// drapto library and emits an evidence.CropReport document.
type CropDetector struct {
	detect DetectFunc
}

// NewCropDetector returns an adapter backed by drapto.
func NewCropDetector() *CropDetector {
	return &CropDetector{detect: draptolib.DetectCrop}
}

// NewCropDetectorWith returns an adapter using detect.
func NewCropDetectorWith(detect DetectFunc) *CropDetector {
	return &CropDetector{detect: detect}
}

func (*CropDetector) Source() evidence.Source { return evidence.SourceCrop }

func (d *CropDetector) Probe(ctx context.Context, path string) ([]byte, error) {
	result, err := d.detect(ctx, path)
	if err != nil {
		return nil, toolError(ctx, evidence.SourceCrop, "detect crop", err)
	}
	if result == nil {
		return nil, toolError(ctx, evidence.SourceCrop, "detect crop", errEmptyResult)
	}
	report := evidence.CropReport{
		VideoWidth:     int(result.VideoWidth),
		VideoHeight:    int(result.VideoHeight),
		Required:       result.Required,
		MultipleRatios: result.MultipleRatios,
	}
	if result.Required {
		report.Crop = strings.TrimSpace(result.CropFilter)
	}
	for _, c := range result.Candidates {
		report.Candidates = append(report.Candidates, evidence.CropCandidate{Crop: c.Crop, Percent: c.Percent})
	}
	return json.Marshal(report)
}
