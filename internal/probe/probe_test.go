package probe

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	draptolib "github.com/five82/drapto"
	"github.com/google/go-cmp/cmp"

	"micromanagerr/internal/config"
	"micromanagerr/internal/evidence"
	"micromanagerr/internal/services"
)

func TestCropDetectorEmitsNormalizableReport(t *testing.T) {
	detector := NewCropDetectorWith(func(ctx context.Context, path string) (*draptolib.CropDetectionResult, error) {
		if path != "/media/film.mkv" {
			t.Errorf("unexpected path %q", path)
		}
		return &draptolib.CropDetectionResult{
			VideoWidth:     3840,
			VideoHeight:    2160,
			Required:       true,
			CropFilter:     "crop=3840:1600:0:280",
			MultipleRatios: true,
			Candidates: []draptolib.CropCandidate{
				{Crop: "3840:1600:0:280", Count: 60, Percent: 60},
				{Crop: "3840:2020:0:70", Count: 40, Percent: 40},
			},
		}, nil
	})
	if detector.Source() != evidence.SourceCrop {
		t.Fatalf("source = %s", detector.Source())
	}
	raw, err := detector.Probe(context.Background(), "/media/film.mkv")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	ev, err := evidence.Normalize(raw, evidence.SourceCrop)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := evidence.MediaEvidence{
		Source:     evidence.SourceCrop,
		Resolution: &evidence.Resolution{Width: 3840, Height: 2160},
		CropRect:   &evidence.Rect{Width: 3840, Height: 1600, Y: 280},
		IMAX:       &evidence.IMAXMarkers{AspectHint: true},
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Fatalf("evidence mismatch (-want +got):\n%s", diff)
	}
}

func TestCropDetectorNotRequiredOmitsCrop(t *testing.T) {
	detector := NewCropDetectorWith(func(context.Context, string) (*draptolib.CropDetectionResult, error) {
		return &draptolib.CropDetectionResult{VideoWidth: 1920, VideoHeight: 1080, CropFilter: "crop=1920:1080:0:0"}, nil
	})
	raw, err := detector.Probe(context.Background(), "x.mkv")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	ev, err := evidence.Normalize(raw, evidence.SourceCrop)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ev.CropRect != nil || ev.IMAX != nil {
		t.Fatalf("unexpected crop evidence %+v", ev)
	}
}

func TestCropDetectorFailuresAreToolErrors(t *testing.T) {
	failing := NewCropDetectorWith(func(context.Context, string) (*draptolib.CropDetectionResult, error) {
		return nil, errors.New("ffmpeg not found")
	})
	if _, err := failing.Probe(context.Background(), "x.mkv"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	empty := NewCropDetectorWith(func(context.Context, string) (*draptolib.CropDetectionResult, error) {
		return nil, nil
	})
	if _, err := empty.Probe(context.Background(), "x.mkv"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for nil result, got %v", err)
	}
}

func TestToolErrorReportsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	slow := NewCropDetectorWith(func(ctx context.Context, _ string) (*draptolib.CropDetectionResult, error) {
		return nil, ctx.Err()
	})
	_, err := slow.Probe(ctx, "x.mkv")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("timeouts should be retryable")
	}
}

func TestMissingBinaryIsToolError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-tool")
	adapters := []Adapter{FFprobe{Binary: missing}, MediaInfo{Binary: missing}}
	for _, a := range adapters {
		_, err := a.Probe(context.Background(), "film.mkv")
		if !errors.Is(err, services.ErrExternalTool) {
			t.Fatalf("%s: expected external tool error, got %v", a.Source(), err)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Probes.FFprobeBinary = "/opt/ffprobe"
	cfg.Probes.MediaInfoEnabled = true
	cfg.Probes.CropDetectionEnabled = true

	adapters := FromConfig(&cfg)
	var sources []evidence.Source
	for _, a := range adapters {
		sources = append(sources, a.Source())
	}
	want := []evidence.Source{evidence.SourceContainer, evidence.SourceStream, evidence.SourceCrop}
	if diff := cmp.Diff(want, sources); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if ff, ok := adapters[0].(FFprobe); !ok || ff.Binary != "/opt/ffprobe" {
		t.Fatalf("unexpected ffprobe adapter %#v", adapters[0])
	}

	cfg.Probes.MediaInfoEnabled = false
	cfg.Probes.CropDetectionEnabled = false
	if got := FromConfig(&cfg); len(got) != 1 {
		t.Fatalf("expected only ffprobe, got %d adapters", len(got))
	}
}
