package uci

import (
	"context"
	"sync"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// Pool is a fixed-size set of engine processes.  Evaluate and EvaluateMove
// borrow an engine for the duration of one search, blocking until one is
// free or the context ends.  Implements evaluation.Engine, so callers that
// analyze one position at a time and callers that fan out over a game are
// wired identically.
type Pool struct {
	cfg     Config
	engines chan *Engine
	logger  logging.Logger
	spawn   func(Config) (*Engine, error)

	mu     sync.Mutex
	closed bool
}

// NewPool starts size engine processes.  Any startup failure closes the
// engines already started and fails the whole pool.
func NewPool(size int, cfg Config) (*Pool, error) {
	return newPool(size, cfg, NewEngine)
}

func newPool(size int, cfg Config, spawn func(Config) (*Engine, error)) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	cfg.applyDefaults()
	p := &Pool{
		cfg:     cfg,
		engines: make(chan *Engine, size),
		logger:  cfg.Logger.Named("engine.pool"),
		spawn:   spawn,
	}
	for i := 0; i < size; i++ {
		e, err := spawn(cfg)
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, errors.ErrCodeEngineStartFailed, "starting engine pool")
		}
		p.engines <- e
	}
	p.logger.Info("engine pool started", logging.Int("size", size))
	return p, nil
}

// Evaluate borrows an engine and runs a multi-line search on it.
func (p *Pool) Evaluate(ctx context.Context, fen string, depth, topK int) (*evaluation.Result, error) {
	e, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(e)
	return e.Evaluate(ctx, fen, depth, topK)
}

// EvaluateMove borrows an engine and evaluates the played move on it.
func (p *Pool) EvaluateMove(ctx context.Context, fen, moveUCI string, depth int) (int, error) {
	e, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.release(e)
	return e.EvaluateMove(ctx, fen, moveUCI, depth)
}

// Available returns the number of idle engines.  Exposed for the metrics
// collector.
func (p *Pool) Available() int {
	return len(p.engines)
}

func (p *Pool) acquire(ctx context.Context) (*Engine, error) {
	select {
	case e, ok := <-p.engines:
		if !ok {
			return nil, errors.New(errors.ErrCodeEngineUnavailable, "engine pool is closed")
		}
		return e, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeEnginePoolExhausted, "waiting for a free engine")
	}
}

func (p *Pool) release(e *Engine) {
	if !e.Healthy() {
		_ = e.Close()
		e = p.respawn()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if e != nil {
			_ = e.Close()
		}
		return
	}
	if e != nil {
		p.engines <- e
	}
}

// respawn replaces a poisoned engine.  The pool runs one engine short when
// the replacement cannot be started.
func (p *Pool) respawn() *Engine {
	fresh, err := p.spawn(p.cfg)
	if err != nil {
		p.logger.Error("replacing crashed engine failed", logging.Err(err))
		return nil
	}
	p.logger.Warn("crashed engine replaced")
	return fresh
}

// Close quits every idle engine and marks the pool closed.  Engines checked
// out at the time of the call are closed on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.engines)
	p.mu.Unlock()

	for e := range p.engines {
		_ = e.Close()
	}
	return nil
}
