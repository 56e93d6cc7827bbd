package orchestrator

//go:generate mockgen -source=orchestrator.go -destination=./mocks/mock_orchestrator.go -package=mocks

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"kniti.io/focus-monitor/internal/batch"
	"kniti.io/focus-monitor/internal/blur"
	cfgpkg "kniti.io/focus-monitor/internal/config"
	"kniti.io/focus-monitor/internal/dispatch"
	"kniti.io/focus-monitor/internal/monitor"
	"kniti.io/focus-monitor/internal/processing"
	"kniti.io/focus-monitor/internal/sink"
)

const instrumentationName = "kniti.io/focus-monitor"

// Orchestrator is what the admin surface needs from a running service.
type Orchestrator interface {
	Stats() Stats
	Ready() bool
	IncrMetric(ctx context.Context, mt MetricType, n int64)
}

// DispatchStats are counters of the batch worker pool.
type DispatchStats struct {
	Queued    int    `json:"queued"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Completed uint64 `json:"completed"`
}

// Stats combines the poll loop and dispatcher counters.
type Stats struct {
	Monitor  monitor.Stats `json:"monitor"`
	Dispatch DispatchStats `json:"dispatch"`
}

// Service holds all instance-scoped dependencies and metrics.
type Service struct {
	Cfg    cfgpkg.Config
	Logger *slog.Logger
	Tracer oteltrace.Tracer
	Meter  otelmetric.Meter

	// Metrics
	Polls        otelmetric.Int64Counter
	ReadFailures otelmetric.Int64Counter
	Flushes      otelmetric.Int64Counter
	Discarded    otelmetric.Int64Counter
	Dropped      otelmetric.Int64Counter
	Failed       otelmetric.Int64Counter
	Completed    otelmetric.Int64Counter
	ImagesScored otelmetric.Int64Counter

	Monitor *monitor.Monitor
	Pool    *dispatch.Pool

	source    monitor.Source
	outSink   sink.Sink
	scorer    blur.Scorer
	processor dispatch.Processor

	mu         sync.Mutex
	loopCancel context.CancelFunc
	closed     bool
}

type Option func(*Service) error

// WithSink overrides the default stdout JSON sink.
func WithSink(s sink.Sink) Option {
	return func(svc *Service) error { svc.outSink = s; return nil }
}

// WithScorer overrides the gradient blur scorer.
func WithScorer(sc blur.Scorer) Option {
	return func(svc *Service) error { svc.scorer = sc; return nil }
}

// WithProcessor replaces the image processor entirely; WithSink and WithScorer are then unused.
func WithProcessor(p dispatch.Processor) Option {
	return func(svc *Service) error { svc.processor = p; return nil }
}

// New constructs a Service with instance-level instruments.
// If source also implements processing.CameraLister, every live camera is scored.
func New(cfg cfgpkg.Config, logger *slog.Logger, source monitor.Source, opts ...Option) (*Service, error) {
	s := &Service{
		Cfg:    cfg,
		Logger: logger,
		Tracer: otel.Tracer(instrumentationName),
		Meter:  otel.Meter(instrumentationName),
		source: source,
	}

	counters := []struct {
		dst  *otelmetric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&s.Polls, "focus.monitor.polls", "Poll cycles run", "{cycle}"},
		{&s.ReadFailures, "focus.monitor.read_failures", "Failed reads of the active roll or camera", "{failure}"},
		{&s.Flushes, "focus.monitor.flushes", "Batches flushed, by flush_kind", "{batch}"},
		{&s.Discarded, "focus.monitor.discarded", "Batches discarded on roll transition", "{batch}"},
		{&s.Dropped, "focus.monitor.dispatch.dropped", "Batches dropped by the dispatcher", "{batch}"},
		{&s.Failed, "focus.monitor.dispatch.failed", "Batches whose processing failed", "{batch}"},
		{&s.Completed, "focus.monitor.dispatch.completed", "Batches processed", "{batch}"},
		{&s.ImagesScored, "focus.monitor.images.scored", "Frames scored for blur", "{image}"},
	}

	for _, c := range counters {
		counter, err := s.Meter.Int64Counter(c.name, otelmetric.WithDescription(c.desc), otelmetric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}

		*c.dst = counter
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.processor == nil {
		s.processor = s.newProcessor()
	}

	s.Pool = dispatch.NewPool(cfg.Workers, cfg.MaxQueue, s.processor, logger)
	s.Pool.SetMetricsCallbacks(
		func(n int64) { s.IncrMetric(context.Background(), MetricDispatchDropped, n) },
		func(n int64) { s.IncrMetric(context.Background(), MetricDispatchFailed, n) },
		func(n int64) { s.IncrMetric(context.Background(), MetricDispatchCompleted, n) },
	)

	policy := batch.Policy{
		Threshold:         cfg.FlushThreshold,
		MinTransitionSize: cfg.MinTransitionBatch,
		MinPeriodicSize:   cfg.MinPeriodicBatch,
	}

	s.Monitor = monitor.New(source, s.Pool, policy, cfg.PollInterval, logger)
	s.Monitor.SetMetricsCallbacks(
		func(n int64) { s.IncrMetric(context.Background(), MetricPolls, n) },
		func(n int64) { s.IncrMetric(context.Background(), MetricReadFailures, n) },
		func(kind batch.FlushKind) { s.recordFlush(context.Background(), kind) },
		func(n int64) { s.IncrMetric(context.Background(), MetricDiscarded, n) },
	)

	return s, nil
}

func (s *Service) newProcessor() *processing.Processor {
	if s.outSink == nil {
		s.outSink = sink.NewStdoutJSON()
	}

	if s.scorer == nil {
		s.scorer = blur.NewGradientScorer()
	}

	popts := []processing.Option{
		processing.WithBlurThreshold(s.Cfg.BlurThreshold),
		processing.WithScoredCallback(func(n int64) { s.IncrMetric(context.Background(), MetricImagesScored, n) }),
	}

	if lister, ok := s.source.(processing.CameraLister); ok {
		popts = append(popts, processing.WithCameraLister(lister))
	}

	return processing.NewProcessor(processing.Layout{Root: s.Cfg.ImageRoot}, s.scorer, s.outSink, s.Logger, popts...)
}

// Start starts the worker pool and the poll loop.
// It is safe to call more than once; Start after Close is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopCancel != nil || s.closed {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.loopCancel = cancel

	spanCtx, span := s.Tracer.Start(ctx, "orchestrator.Start")
	defer span.End()

	s.Logger.DebugContext(spanCtx, "orchestrator.Start: begin")

	s.Pool.Start(loopCtx)
	s.Monitor.Start(loopCtx)

	s.Logger.InfoContext(spanCtx, "orchestrator started",
		slog.Duration("poll_interval", s.Cfg.PollInterval),
		slog.Int64("flush_threshold", s.Cfg.FlushThreshold),
		slog.Int("workers", s.Cfg.Workers),
	)
}

// Close stops the poll loop, then drains the dispatcher within ctx.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.Tracer.Start(ctx, "orchestrator.Close")
	defer span.End()

	s.Logger.DebugContext(ctx, "orchestrator.Close: begin")

	s.closed = true

	if s.loopCancel != nil {
		s.loopCancel()
		s.Monitor.Stop(ctx)
		s.loopCancel = nil
	}

	err := s.Pool.Close(ctx)
	if err != nil {
		span.RecordError(err)
	}

	s.Logger.DebugContext(ctx, "orchestrator.Close: end", slog.Int("queue_len", s.Pool.QueueLen()))

	return err
}

// Ready reports whether the loop has seen a first snapshot.
func (s *Service) Ready() bool { return s.Monitor.State() == monitor.Tracking }

func (s *Service) Stats() Stats {
	return Stats{
		Monitor: s.Monitor.Stats(),
		Dispatch: DispatchStats{
			Queued:    s.Pool.QueueLen(),
			Dropped:   s.Pool.Dropped(),
			Failed:    s.Pool.Failed(),
			Completed: s.Pool.Completed(),
		},
	}
}

// MetricType enumerates orchestrator metric counters.
type MetricType int

const (
	MetricPolls MetricType = iota
	MetricReadFailures
	MetricFlushes
	MetricDiscarded
	MetricDispatchDropped
	MetricDispatchFailed
	MetricDispatchCompleted
	MetricImagesScored
)

// IncrMetric increments the selected metric by n (if n > 0).
func (s *Service) IncrMetric(ctx context.Context, mt MetricType, n int64) {
	if n <= 0 {
		return
	}

	switch mt {
	case MetricPolls:
		s.Polls.Add(ctx, n)
	case MetricReadFailures:
		s.ReadFailures.Add(ctx, n)
	case MetricFlushes:
		s.Flushes.Add(ctx, n)
	case MetricDiscarded:
		s.Discarded.Add(ctx, n)
	case MetricDispatchDropped:
		s.Dropped.Add(ctx, n)
	case MetricDispatchFailed:
		s.Failed.Add(ctx, n)
	case MetricDispatchCompleted:
		s.Completed.Add(ctx, n)
	case MetricImagesScored:
		s.ImagesScored.Add(ctx, n)
	}
}

func (s *Service) recordFlush(ctx context.Context, kind batch.FlushKind) {
	s.Flushes.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("flush_kind", kind.String())))
}
