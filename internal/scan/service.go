package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"micromanagerr/internal/classify"
	"micromanagerr/internal/config"
	"micromanagerr/internal/evidence"
	"micromanagerr/internal/logging"
	"micromanagerr/internal/metrics"
	"micromanagerr/internal/probe"
	"micromanagerr/internal/scancache"
	"micromanagerr/internal/services"
)

const (
	defaultProbeTimeout  = 2 * time.Minute
	defaultMaxConcurrent = 2
)

// Cache stores classifications between runs. *scancache.Store satisfies it.
type Cache interface {
	Lookup(ctx context.Context, key scancache.Key) (classify.Classification, bool, error)
	Save(ctx context.Context, key scancache.Key, c classify.Classification) error
}

var _ Cache = (*scancache.Store)(nil)

// Request describes one file to classify.
type Request struct {
	Path string
	// ReferenceRuntime is the expected theatrical runtime in seconds, from an
	// external lookup. Nil disables the runtime edition signal.
	ReferenceRuntime *float64
	FilenameHint     string
}

// SkippedSource records an adapter that produced no evidence.
type SkippedSource struct {
	Source evidence.Source
	Err    error
}

// Result is the outcome of one scan.
type Result struct {
	Request        Request
	RequestID      string
	Classification classify.Classification
	Evidence       []evidence.MediaEvidence
	Skipped        []SkippedSource
	Cached         bool
	Duration       time.Duration
	Err            error
}

// Service runs probes, normalizes their output, and classifies the result.
type Service struct {
	adapters      []probe.Adapter
	policy        classify.MarkerPolicy
	threshold     float64
	probeTimeout  time.Duration
	maxConcurrent int
	cache         Cache
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMarkerPolicy sets how HDR marker disagreement resolves.
func WithMarkerPolicy(policy classify.MarkerPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithRuntimeThreshold sets the edition runtime delta threshold in seconds.
func WithRuntimeThreshold(seconds float64) Option {
	return func(s *Service) { s.threshold = seconds }
}

// WithProbeTimeout bounds each adapter invocation.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// WithMaxConcurrent bounds how many files ScanAll probes at once.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithCache enables classification caching.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics records scan counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a scan service over the given adapters.
func NewService(adapters []probe.Adapter, opts ...Option) *Service {
	s := &Service{
		adapters:      adapters,
		policy:        classify.PolicyPresence,
		threshold:     classify.DefaultRuntimeThresholdSeconds,
		probeTimeout:  defaultProbeTimeout,
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scan")
	return s
}

// NewFromConfig builds a scan service from configuration. Extra options are
// applied after the configured ones.
func NewFromConfig(cfg *config.Config, opts ...Option) *Service {
	base := []Option{
		WithMarkerPolicy(classify.MarkerPolicy(cfg.Classification.MarkerPolicy)),
		WithRuntimeThreshold(float64(cfg.Classification.RuntimeThresholdSeconds)),
		WithProbeTimeout(time.Duration(cfg.Probes.TimeoutSeconds) * time.Second),
		WithMaxConcurrent(cfg.Probes.MaxConcurrent),
	}
	return NewService(probe.FromConfig(cfg), append(base, opts...)...)
}

// ScanAndClassify probes one file and returns its classification.
//
// Adapters whose tool is missing, fails, or times out are skipped with a
// warning. Malformed output from any adapter aborts the file, as does a
// Dolby Vision conflict. When no adapter produced evidence the error
// matches services.ErrExternalTool. Results with a skipped source are not
// cached, so the next scan probes every source again.
func (s *Service) ScanAndClassify(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{Request: req, RequestID: uuid.NewString()}
	ctx = services.WithStage(services.WithRequestID(ctx, res.RequestID), "scan")
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldPath, req.Path))

	if strings.TrimSpace(req.Path) == "" {
		res.Err = services.Wrap(services.ErrValidation, "scan", "scan file", "path is required", nil)
		s.metrics.ObserveScan(metrics.OutcomeFailure)
		return res, res.Err
	}

	key, keyOK := s.cacheKey(ctx, logger, req)
	if keyOK {
		if cached, hit, err := s.cache.Lookup(ctx, key); err != nil {
			logging.WarnWithContext(logger, "classification cache lookup failed", "cache_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `micromanagerr cache clear` if the cache is corrupt"),
				logging.String(logging.FieldImpact, "file is re-probed"),
			)
		} else if hit {
			res.Classification = cached
			res.Cached = true
			res.Duration = time.Since(start)
			s.metrics.ObserveScan(metrics.OutcomeCached)
			logger.Debug("classification served from cache", logging.String("summary", cached.Summary()))
			return res, nil
		}
	}

	records, skipped, err := s.collect(ctx, logger, req.Path)
	res.Evidence = records
	res.Skipped = skipped
	if err == nil {
		res.Classification, err = classify.Classify(records, s.classifyOptions(req))
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		s.metrics.ObserveScan(metrics.OutcomeFailure)
		logging.ErrorWithContext(logger, "scan failed", "scan_failed",
			logging.Error(err),
			logging.String("outcome", services.Outcome(err)),
			logging.Bool("retryable", services.IsRetryable(err)),
		)
		return res, err
	}

	s.metrics.ObserveScan(metrics.OutcomeSuccess)
	s.metrics.ObserveClassification(string(res.Classification.HDR.Kind))
	attrs := append(
		logging.DecisionAttrs("classification", res.Classification.Summary(), strings.Join(res.Classification.Explain(), "; ")),
		logging.Int("evidence_records", len(records)),
		logging.Int("skipped_sources", len(skipped)),
		logging.Duration("duration", res.Duration),
	)
	logger.Info("file classified", logging.Args(attrs...)...)

	switch {
	case !keyOK:
	case len(skipped) > 0:
		logger.Debug("classification not cached", logging.Int("skipped_sources", len(skipped)))
	default:
		if err := s.cache.Save(ctx, key, res.Classification); err != nil {
			logging.WarnWithContext(logger, "classification cache save failed", "cache_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next scan of this file re-probes"),
			)
		}
	}
	return res, nil
}

// ScanAll scans every request with bounded concurrency. Results keep the
// input order; per-file failures are reported in Result.Err and never stop
// other files. Requests not yet started when ctx is canceled fail with the
// context error.
func (s *Service) ScanAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Request: req, Err: err}
				return nil
			}
			res, _ := s.ScanAndClassify(ctx, req)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// collect runs every adapter concurrently and normalizes what they return.
func (s *Service) collect(ctx context.Context, logger *slog.Logger, path string) ([]evidence.MediaEvidence, []SkippedSource, error) {
	raws := make([][]byte, len(s.adapters))
	errs := make([]error, len(s.adapters))
	var g errgroup.Group
	for i, adapter := range s.adapters {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
			defer cancel()
			raws[i], errs[i] = adapter.Probe(probeCtx, path)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		records []evidence.MediaEvidence
		skipped []SkippedSource
	)
	for i, adapter := range s.adapters {
		source := adapter.Source()
		if err := errs[i]; err != nil {
			if !errors.Is(err, services.ErrExternalTool) && !errors.Is(err, services.ErrTimeout) {
				return nil, nil, fmt.Errorf("probe %s: %w", source, err)
			}
			skipped = append(skipped, SkippedSource{Source: source, Err: err})
			s.metrics.ObserveProbeFailure(string(source), err)
			logging.WarnWithContext(logger, "probe skipped", "probe_skipped",
				logging.String(logging.FieldSource, string(source)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `micromanagerr deps` to check tool availability"),
				logging.String(logging.FieldImpact, "classification uses the remaining sources"),
			)
			continue
		}
		record, err := evidence.Normalize(raws[i], source)
		if err != nil {
			return nil, skipped, err
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		causes := make([]error, 0, len(skipped))
		for _, sk := range skipped {
			causes = append(causes, sk.Err)
		}
		return nil, skipped, services.Wrap(services.ErrExternalTool, "scan", "collect evidence", "no probe produced evidence", errors.Join(causes...))
	}
	return records, skipped, nil
}

func (s *Service) classifyOptions(req Request) classify.Options {
	return classify.Options{
		ReferenceRuntimeSeconds: req.ReferenceRuntime,
		FilenameHint:            req.FilenameHint,
		RuntimeThresholdSeconds: s.threshold,
		MarkerPolicy:            s.policy,
	}
}

// fingerprint identifies the settings that change a verdict for the same
// inputs.
func (s *Service) fingerprint() string {
	sources := make([]string, 0, len(s.adapters))
	for _, a := range s.adapters {
		sources = append(sources, string(a.Source()))
	}
	return fmt.Sprintf("%s/%g/%s", s.policy, s.threshold, strings.Join(sources, ","))
}

func (s *Service) cacheKey(ctx context.Context, logger *slog.Logger, req Request) (scancache.Key, bool) {
	if s.cache == nil {
		return scancache.Key{}, false
	}
	key, err := scancache.KeyForFile(req.Path, req.FilenameHint, req.ReferenceRuntime, s.fingerprint())
	if err != nil {
		logger.DebugContext(ctx, "classification cache bypassed", logging.Error(err))
		return scancache.Key{}, false
	}
	return key, true
}
