package monitor

//go:generate mockgen -source=monitor.go -destination=./mocks/mock_monitor.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"kniti.io/focus-monitor/internal/batch"
	"kniti.io/focus-monitor/internal/dispatch"
	"kniti.io/focus-monitor/internal/snapshot"
	"kniti.io/focus-monitor/internal/store"
)

// Source reads the live state of the production line.
// A nil snapshot with a nil error means nothing is active.
type Source interface {
	ReadActiveRoll(ctx context.Context) (*snapshot.Roll, error)
	ReadActiveCamera(ctx context.Context) (*snapshot.Camera, error)
}

// State is the poll loop state.
type State int32

const (
	AwaitingFirstSnapshot State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}

	return "awaiting_first_snapshot"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Monitor polls a Source, accumulates doff samples per roll and dispatches
// batches when the policy says so.
type Monitor struct {
	source     Source
	dispatcher dispatch.Dispatcher
	policy     batch.Policy
	interval   time.Duration
	logger     *slog.Logger

	nowFn func() time.Time

	// Single-goroutine owned fields
	previous *snapshot.Roll
	acc      *batch.Accumulator
	camera   string

	// Published for Stats; written only by the loop goroutine.
	state          atomic.Int32
	cycles         atomic.Uint64
	readFailures   atomic.Uint64
	unchanged      atomic.Uint64
	transitions    atomic.Uint64
	periodic       atomic.Uint64
	discarded      atomic.Uint64
	rejected       atomic.Uint64
	rollID         atomic.Int64
	lastRevolution atomic.Int64
	batchSize      atomic.Int64

	started atomic.Bool
	done    chan struct{}

	// Optional metric callbacks provided by the owner (e.g., orchestrator).
	incrPolls        func(int64)
	incrReadFailures func(int64)
	incrFlushes      func(batch.FlushKind)
	incrDiscarded    func(int64)
}

func New(source Source, dispatcher dispatch.Dispatcher, policy batch.Policy, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Monitor{
		source:     source,
		dispatcher: dispatcher,
		policy:     policy,
		interval:   interval,
		logger:     logger,
		nowFn:      time.Now,
		done:       make(chan struct{}),
	}
}

// SetMetricsCallbacks installs optional callbacks for metrics updates.
// If not provided, metrics are not recorded by the monitor.
func (m *Monitor) SetMetricsCallbacks(incrPolls, incrReadFailures func(int64), incrFlushes func(batch.FlushKind), incrDiscarded func(int64)) {
	m.incrPolls = incrPolls
	m.incrReadFailures = incrReadFailures
	m.incrFlushes = incrFlushes
	m.incrDiscarded = incrDiscarded
}

// Start runs the poll loop in a goroutine until ctx is canceled.
// Calling Start more than once is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(m.done)
		m.Run(ctx)
	}()
}

// Stop waits for a loop started with Start to finish; the caller cancels the Start context.
func (m *Monitor) Stop(ctx context.Context) {
	if !m.started.Load() {
		return
	}

	select {
	case <-m.done:
		return
	case <-ctx.Done():
		return
	}
}

// Run polls every interval until ctx is canceled. Cancellation is observed
// between cycles; a read in progress completes under the store's own timeout.
func (m *Monitor) Run(ctx context.Context) {
	readCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("monitor started", slog.Duration("interval", m.interval), slog.Int64("threshold", m.policy.Threshold))

	for ctx.Err() == nil {
		m.Step(readCtx)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	m.logger.Info("monitor stopped", slog.Uint64("cycles", m.cycles.Load()))
}

// Step runs exactly one poll cycle.
func (m *Monitor) Step(ctx context.Context) {
	m.cycles.Add(1)

	if m.incrPolls != nil {
		m.incrPolls(1)
	}

	m.refreshCamera(ctx)

	cur, err := m.source.ReadActiveRoll(ctx)
	if err != nil {
		m.readFailed(ctx, "roll", err)
		return
	}

	if cur == nil {
		m.logger.InfoContext(ctx, "no active roll; retrying")
		return
	}

	if m.State() == AwaitingFirstSnapshot {
		m.accept(cur)
		m.acc = batch.NewAccumulator(cur.RollID)
		// The first reading is a doff of the tracked roll; no flush is evaluated for it.
		m.acc.Append(cur.Revolution)
		m.publish()
		m.state.Store(int32(Tracking))
		m.logger.InfoContext(ctx, "tracking roll",
			slog.Int64("roll_id", cur.RollID),
			slog.String("roll_name", cur.RollName),
			slog.Int64("revolution", cur.Revolution),
		)

		return
	}

	if !snapshot.HasChanged(m.previous, cur) {
		m.unchanged.Add(1)
		m.logger.DebugContext(ctx, "roll unchanged", slog.Int64("roll_id", cur.RollID), slog.Int64("revolution", cur.Revolution))

		return
	}

	m.track(ctx, cur)
	m.accept(cur)
	m.publish()
}

func (m *Monitor) track(ctx context.Context, cur *snapshot.Roll) {
	if cur.RollID != m.acc.RollID() {
		outgoing := m.acc.Size()

		switch m.policy.ShouldFlush(true, outgoing, cur.Revolution) {
		case batch.FlushTransition:
			m.flush(ctx, batch.FlushTransition)
		default:
			if outgoing > 0 {
				m.discard(ctx, outgoing)
			}
		}

		m.logger.InfoContext(ctx, "roll transition",
			slog.Int64("from_roll_id", m.acc.RollID()),
			slog.Int64("roll_id", cur.RollID),
			slog.Int("batch_size", outgoing),
		)
		m.acc.Reset(cur.RollID)
		m.acc.Append(cur.Revolution)

		return
	}

	if last, ok := m.acc.Last(); ok && cur.Revolution < last {
		m.logger.WarnContext(ctx, "revolution went backwards",
			slog.Int64("roll_id", cur.RollID),
			slog.Int64("previous", last),
			slog.Int64("revolution", cur.Revolution),
		)
	}

	m.acc.Append(cur.Revolution)

	if m.policy.ShouldFlush(false, m.acc.Size(), cur.Revolution) == batch.FlushPeriodic {
		m.flush(ctx, batch.FlushPeriodic)
	}
}

func (m *Monitor) flush(ctx context.Context, kind batch.FlushKind) {
	rollID := m.acc.RollID()
	ev := dispatch.NewEvent(rollID, m.acc.Take(), kind, m.camera, m.nowFn())

	switch kind {
	case batch.FlushTransition:
		m.transitions.Add(1)
	case batch.FlushPeriodic:
		m.periodic.Add(1)
	}

	if m.incrFlushes != nil {
		m.incrFlushes(kind)
	}

	if !m.dispatcher.Dispatch(ev) {
		m.rejected.Add(1)
		m.logger.WarnContext(ctx, "batch not accepted by dispatcher",
			slog.String("event_id", ev.ID),
			slog.Int64("roll_id", rollID),
			slog.String("flush_kind", kind.String()),
		)

		return
	}

	m.logger.InfoContext(ctx, "batch dispatched",
		slog.String("event_id", ev.ID),
		slog.Int64("roll_id", rollID),
		slog.String("flush_kind", kind.String()),
		slog.Int("batch_size", len(ev.Samples)),
	)
}

func (m *Monitor) discard(ctx context.Context, size int) {
	m.discarded.Add(1)

	if m.incrDiscarded != nil {
		m.incrDiscarded(1)
	}

	m.logger.InfoContext(ctx, "discarding short batch at roll transition",
		slog.Int64("roll_id", m.acc.RollID()),
		slog.Int("batch_size", size),
	)
}

func (m *Monitor) refreshCamera(ctx context.Context) {
	cam, err := m.source.ReadActiveCamera(ctx)
	if err != nil {
		m.readFailed(ctx, "camera", err)
		return
	}

	if cam == nil {
		m.logger.DebugContext(ctx, "no active camera", slog.String("last_camera", m.camera))
		return
	}

	m.camera = cam.Name
}

func (m *Monitor) readFailed(ctx context.Context, what string, err error) {
	m.readFailures.Add(1)

	if m.incrReadFailures != nil {
		m.incrReadFailures(1)
	}

	level := slog.LevelWarn
	if !errors.Is(err, store.ErrReadFailure) {
		level = slog.LevelError
	}

	m.logger.Log(ctx, level, "read failed; no new information this cycle",
		slog.String("entity", what),
		slog.String("err", err.Error()),
	)
}

func (m *Monitor) accept(cur *snapshot.Roll) {
	c := *cur
	m.previous = &c
}

func (m *Monitor) publish() {
	m.rollID.Store(m.acc.RollID())
	m.batchSize.Store(int64(m.acc.Size()))
	m.lastRevolution.Store(m.previous.Revolution)
}

// State returns the current loop state.
func (m *Monitor) State() State { return State(m.state.Load()) }
