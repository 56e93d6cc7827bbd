package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kniti.io/focus-monitor/internal/blur"
	"kniti.io/focus-monitor/internal/dispatch"
	"kniti.io/focus-monitor/internal/sink"
)

const instrumentationName = "kniti.io/focus-monitor/internal/processing"

// DefaultBlurThreshold is the average score above which a folder is mostly blurry.
const DefaultBlurThreshold = blur.DefaultThreshold

var (
	// ErrNoImages means no camera had frames for the batch.
	ErrNoImages = errors.New("processing: no images")
	// ErrNoCamera means neither the store nor the event named a camera.
	ErrNoCamera = errors.New("processing: no camera")
)

// CameraLister returns the cameras currently streaming.
type CameraLister interface {
	ReadLiveCameras(ctx context.Context) ([]string, error)
}

// Processor scores the frames of every live camera for a flushed batch and
// publishes one report per camera.
type Processor struct {
	layout        Layout
	scorer        blur.Scorer
	sink          sink.Sink
	cameras       CameraLister
	blurThreshold float64
	parallelism   int
	logger        *slog.Logger
	tracer        oteltrace.Tracer

	nowFn func() time.Time

	incrScored func(int64)
}

type Option func(*Processor)

// WithCameraLister scores every live camera instead of only the event's camera.
func WithCameraLister(c CameraLister) Option { return func(p *Processor) { p.cameras = c } }

// WithBlurThreshold overrides DefaultBlurThreshold.
func WithBlurThreshold(v float64) Option { return func(p *Processor) { p.blurThreshold = v } }

// WithParallelism bounds how many cameras are scored at once.
func WithParallelism(n int) Option { return func(p *Processor) { p.parallelism = n } }

// WithScoredCallback is called with the number of frames scored per camera.
func WithScoredCallback(fn func(int64)) Option { return func(p *Processor) { p.incrScored = fn } }

func NewProcessor(layout Layout, scorer blur.Scorer, s sink.Sink, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		layout:        layout,
		scorer:        scorer,
		sink:          s,
		blurThreshold: DefaultBlurThreshold,
		parallelism:   2,
		logger:        logger,
		tracer:        otel.Tracer(instrumentationName),
		nowFn:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.parallelism < 1 {
		p.parallelism = 1
	}

	return p
}

type cameraResult struct {
	report sink.Report
	err    error
}

// Process implements dispatch.Processor.
func (p *Processor) Process(ctx context.Context, ev dispatch.Event) (err error) {
	ctx, span := p.tracer.Start(ctx, "processing.Process")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.Int64("roll.id", ev.RollID),
		attribute.String("flush.kind", ev.Kind.String()),
		attribute.Int("batch.size", len(ev.Samples)),
	)

	cameras := p.resolveCameras(ctx, ev)
	if len(cameras) == 0 {
		return fmt.Errorf("roll %d: %w", ev.RollID, ErrNoCamera)
	}

	results := make([]cameraResult, len(cameras))

	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for i, cam := range cameras {
		i, cam := i, cam
		g.Go(func() error {
			results[i].report, results[i].err = p.scoreCamera(ev, cam)
			return nil
		})
	}

	_ = g.Wait()

	var (
		errs      []error
		published int
	)

	for i, res := range results {
		if errors.Is(res.err, ErrNoImages) {
			p.logger.InfoContext(ctx, "no frames for camera",
				slog.String("event_id", ev.ID),
				slog.String("camera", cameras[i]),
				slog.String("dir", res.report.Directory),
			)

			continue
		}

		if res.err != nil {
			errs = append(errs, fmt.Errorf("camera %s: %w", cameras[i], res.err))
			continue
		}

		if err := p.sink.Publish(ctx, res.report); err != nil {
			errs = append(errs, fmt.Errorf("camera %s: publish: %w", cameras[i], err))
			continue
		}

		published++

		p.logger.InfoContext(ctx, "focus report",
			slog.String("event_id", ev.ID),
			slog.Int64("roll_id", ev.RollID),
			slog.String("camera", res.report.Camera),
			slog.Int("images", res.report.Images),
			slog.Float64("average_score", res.report.AverageScore),
			slog.Bool("blurry", res.report.Blurry),
		)
	}

	span.SetAttributes(attribute.Int("reports.published", published))

	if published == 0 && len(errs) == 0 {
		return fmt.Errorf("roll %d: %w", ev.RollID, ErrNoImages)
	}

	return errors.Join(errs...)
}

func (p *Processor) resolveCameras(ctx context.Context, ev dispatch.Event) []string {
	if p.cameras != nil {
		live, err := p.cameras.ReadLiveCameras(ctx)
		if err != nil {
			p.logger.WarnContext(ctx, "listing live cameras failed; using event camera",
				slog.String("err", err.Error()),
				slog.String("camera", ev.Camera),
			)
		} else if len(live) > 0 {
			return live
		}
	}

	if ev.Camera == "" {
		return nil
	}

	return []string{ev.Camera}
}

func (p *Processor) scoreCamera(ev dispatch.Event, camera string) (sink.Report, error) {
	dir := p.layout.Dir(ev.RollID, camera, ev.TriggeredAt)
	report := sink.Report{
		EventID:     ev.ID,
		RollID:      ev.RollID,
		FlushKind:   ev.Kind.String(),
		Samples:     ev.Samples,
		Camera:      camera,
		Directory:   dir,
		TriggeredAt: ev.TriggeredAt,
	}

	images, err := ListImages(dir)
	if err != nil {
		return report, fmt.Errorf("list %s: %w", dir, err)
	}

	if len(images) == 0 {
		return report, ErrNoImages
	}

	var total float64

	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			report.FailedImages++
			continue
		}

		score, err := p.scorer.Score(data)
		if err != nil {
			report.FailedImages++
			continue
		}

		total += score
		report.Images++
	}

	if p.incrScored != nil && report.Images > 0 {
		p.incrScored(int64(report.Images))
	}

	if report.Images == 0 {
		return report, fmt.Errorf("%d frames in %s could not be scored", report.FailedImages, dir)
	}

	report.AverageScore = total / float64(report.Images)
	report.Blurry = report.AverageScore > p.blurThreshold
	report.ProcessedAt = p.nowFn()

	return report, nil
}
