package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyQueued means the strategy is queued or running; a second run is not started.
	ErrAlreadyQueued = errors.New("strategy already queued or running")
	ErrQueueFull     = errors.New("dispatch queue is full")
	ErrPoolStopped   = errors.New("dispatch pool stopped")
)

// RunFunc executes one strategy by id.
type RunFunc func(ctx context.Context, strategyID string)

// Pool is a bounded queue drained by a fixed number of workers.
// A strategy id is held in-flight from Dispatch until its run returns.
type Pool struct {
	run     RunFunc
	workers int
	logger  *zap.Logger

	queue chan string
	wg    conc.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	started  bool
	stopped  bool
}

func NewPool(workers, queueSize int, run RunFunc, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		run:      run,
		workers:  workers,
		logger:   logger,
		queue:    make(chan string, queueSize),
		inflight: map[string]struct{}{},
	}
}

// Start launches the workers. Runs inherit ctx; cancelling it cuts runs short
// but they still record their outcome.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Go(func() { p.work(ctx) })
	}
}

// Dispatch enqueues strategyID without blocking.
func (p *Pool) Dispatch(strategyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if _, ok := p.inflight[strategyID]; ok {
		return ErrAlreadyQueued
	}
	select {
	case p.queue <- strategyID:
		p.inflight[strategyID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// InFlight returns how many strategies are queued or running.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Stop refuses new work, lets the workers drain the queue and waits for them
// or for ctx, whichever comes first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work(ctx context.Context) {
	for id := range p.queue {
		var pc panics.Catcher
		pc.Try(func() { p.run(ctx, id) })
		if r := pc.Recovered(); r != nil {
			p.logger.Error("pool: run panicked", zap.String("strategy_id", id), zap.String("panic", r.String()))
		}
		p.mu.Lock()
		delete(p.inflight, id)
		p.mu.Unlock()
	}
}
