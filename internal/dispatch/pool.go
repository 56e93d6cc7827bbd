package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Pool runs events on a fixed set of workers fed by a bounded queue.
// When the queue is full new events are dropped and counted.
type Pool struct {
	queue   chan Event
	workers int
	proc    Processor
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool

	wg   sync.WaitGroup
	done chan struct{}

	dropped   atomic.Uint64
	failed    atomic.Uint64
	completed atomic.Uint64

	// Optional metric callbacks provided by the owner (e.g., orchestrator).
	incrDropped   func(int64)
	incrFailed    func(int64)
	incrCompleted func(int64)
}

func NewPool(workers, maxQueue int, proc Processor, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}

	if maxQueue < 0 {
		maxQueue = 0
	}

	return &Pool{
		queue:   make(chan Event, maxQueue),
		workers: workers,
		proc:    proc,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// SetMetricsCallbacks installs optional callbacks for metrics updates.
func (p *Pool) SetMetricsCallbacks(incrDropped, incrFailed, incrCompleted func(int64)) {
	p.incrDropped = incrDropped
	p.incrFailed = incrFailed
	p.incrCompleted = incrCompleted
}

// Start launches the workers. Work keeps running after ctx is canceled;
// use Close to drain. Calling Start more than once is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.started = true
	workCtx := context.WithoutCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			for ev := range p.queue {
				p.run(workCtx, ev)
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Dispatch enqueues ev without blocking. Returns false if the pool is closed or the queue is full.
func (p *Pool) Dispatch(ev Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.recordDrop(ev, "closed")
		return false
	}

	select {
	case p.queue <- ev:
		return true
	default:
		p.recordDrop(ev, "queue full")
		return false
	}
}

// Close stops accepting events and waits for queued and in-flight work or ctx expiry.
// Events queued on a pool that was never started are counted as dropped.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		// No worker will ever read the queue.
		for ev := range p.queue {
			p.recordDrop(ev, "closed before start")
		}

		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: waiting for workers: %w", ctx.Err())
	}
}

func (p *Pool) run(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.recordFailure(ev, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.proc.Process(ctx, ev); err != nil {
		p.recordFailure(ev, err)
		return
	}

	p.completed.Add(1)

	if p.incrCompleted != nil {
		p.incrCompleted(1)
	}
}

func (p *Pool) recordDrop(ev Event, reason string) {
	p.dropped.Add(1)
	p.logger.Warn("dropping batch",
		slog.String("reason", reason),
		slog.String("event_id", ev.ID),
		slog.Int64("roll_id", ev.RollID),
		slog.Int("batch_size", len(ev.Samples)),
	)

	if p.incrDropped != nil {
		p.incrDropped(1)
	}
}

func (p *Pool) recordFailure(ev Event, err error) {
	p.failed.Add(1)
	p.logger.Error("batch processing failed",
		slog.String("err", err.Error()),
		slog.String("event_id", ev.ID),
		slog.Int64("roll_id", ev.RollID),
		slog.String("flush_kind", ev.Kind.String()),
	)

	if p.incrFailed != nil {
		p.incrFailed(1)
	}
}

// Dropped returns the number of events rejected so far.
func (p *Pool) Dropped() uint64 { return p.dropped.Load() }

// Failed returns the number of events whose processing returned an error or panicked.
func (p *Pool) Failed() uint64 { return p.failed.Load() }

// Completed returns the number of events processed successfully.
func (p *Pool) Completed() uint64 { return p.completed.Load() }

// QueueLen returns the current queue length; can be observed for metrics.
func (p *Pool) QueueLen() int { return len(p.queue) }
