package probe

import (
	"context"
	"errors"

	"micromanagerr/internal/config"
	"micromanagerr/internal/evidence"
	"micromanagerr/internal/media/ffprobe"
	"micromanagerr/internal/media/mediainfo"
	"micromanagerr/internal/services"
)

// Adapter runs one external probe against a file and returns its raw output.
// Adapters hold no state between calls.
type Adapter interface {
	Source() evidence.Source
	Probe(ctx context.Context, path string) ([]byte, error)
}

// FFprobe is the container-metadata adapter.
type FFprobe struct {
	Binary string
}

func (FFprobe) Source() evidence.Source { return evidence.SourceContainer }

func (a FFprobe) Probe(ctx context.Context, path string) ([]byte, error) {
	out, err := ffprobe.Run(ctx, a.Binary, path)
	if err != nil {
		return nil, toolError(ctx, evidence.SourceContainer, "run ffprobe", err)
	}
	return out, nil
}

// MediaInfo is the stream-inspector adapter.
type MediaInfo struct {
	Binary string
}

func (MediaInfo) Source() evidence.Source { return evidence.SourceStream }

func (a MediaInfo) Probe(ctx context.Context, path string) ([]byte, error) {
	out, err := mediainfo.Run(ctx, a.Binary, path)
	if err != nil {
		return nil, toolError(ctx, evidence.SourceStream, "run mediainfo", err)
	}
	return out, nil
}

// FromConfig returns the adapters enabled by cfg in rank order.
func FromConfig(cfg *config.Config) []Adapter {
	if cfg == nil {
		return []Adapter{FFprobe{}}
	}
	adapters := []Adapter{FFprobe{Binary: cfg.Probes.FFprobeBinary}}
	if cfg.Probes.MediaInfoEnabled {
		adapters = append(adapters, MediaInfo{Binary: cfg.Probes.MediaInfoBinary})
	}
	if cfg.Probes.CropDetectionEnabled {
		adapters = append(adapters, NewCropDetector())
	}
	return adapters
}

// toolError marks adapter failures so the scan can skip the source. A
// deadline hit is reported as a timeout.
func toolError(ctx context.Context, source evidence.Source, op string, err error) error {
	marker := services.ErrExternalTool
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "probe", string(source), op, err)
}
