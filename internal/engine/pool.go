package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

var (
	ErrWrongInstance = errors.New("wrong instance released")
	ErrPoolClosed    = errors.New("engine pool is closed")
)

// Searcher is one engine able to search a position
type Searcher interface {
	NewGame(ctx context.Context) error
	SetPosition(fen string) error
	BestMove(ctx context.Context) (string, error)
	Healthy() bool
	Close() error
}

// Factory starts a new Searcher
type Factory func(ctx context.Context) (Searcher, error)

// NewFactory returns a Factory starting UCI processes with opts
func NewFactory(opts Options, logger *zap.Logger) Factory {
	return func(ctx context.Context) (Searcher, error) {
		return New(ctx, opts, logger)
	}
}

// Instance is a pooled engine slot. Searcher is nil while the slot waits for a restart.
type Instance struct {
	id       uuid.UUID
	Searcher Searcher
}

// Pool hands out engine instances to one caller at a time
type Pool struct {
	factory Factory
	idSet   map[uuid.UUID]bool
	pool    chan *Instance
	closed  atomic.Bool
	closeMu sync.Mutex
	log     *zap.Logger
}

// NewPool starts size engines
func NewPool(ctx context.Context, size int, factory Factory, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		factory: factory,
		idSet:   make(map[uuid.UUID]bool, size),
		pool:    make(chan *Instance, size),
		log:     logger,
	}

	for i := 0; i < size; i++ {
		s, err := factory(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("starting engine %d/%d: %w", i+1, size, err)
		}
		id := uuid.New()
		p.idSet[id] = true
		p.pool <- &Instance{id: id, Searcher: s}
	}

	p.log.Info("engine pool started", zap.Int("size", size))
	return p, nil
}

// Acquire waits for a free instance, restarting it first if it is unusable
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	var inst *Instance
	select {
	case inst = <-p.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if inst.Searcher != nil && inst.Searcher.Healthy() {
		return inst, nil
	}

	if inst.Searcher != nil {
		inst.Searcher.Close()
		inst.Searcher = nil
	}

	s, err := p.factory(ctx)
	if err != nil {
		p.pool <- inst
		return nil, fmt.Errorf("restarting engine: %w", err)
	}
	p.log.Info("engine restarted", zap.String("instance", inst.id.String()))
	inst.Searcher = s
	return inst, nil
}

// Release returns an instance to the pool
func (p *Pool) Release(inst *Instance) error {
	if inst == nil || !p.idSet[inst.id] {
		return ErrWrongInstance
	}

	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if p.closed.Load() {
		if inst.Searcher != nil {
			return inst.Searcher.Close()
		}
		return nil
	}

	if inst.Searcher != nil && !inst.Searcher.Healthy() {
		p.log.Warn("engine unhealthy, scheduling restart", zap.String("instance", inst.id.String()))
		inst.Searcher.Close()
		inst.Searcher = nil
	}

	p.pool <- inst
	return nil
}

// BestMove asks a pooled engine for its move in fen. "" means the engine has no move.
func (p *Pool) BestMove(ctx context.Context, fen string) (string, error) {
	inst, err := p.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, core.ErrEngineUnavailable)
	}
	defer p.Release(inst)

	if err = inst.Searcher.SetPosition(fen); err != nil {
		return "", fmt.Errorf("set position: %v: %w", err, core.ErrEngineUnavailable)
	}

	move, err := inst.Searcher.BestMove(ctx)
	if err != nil {
		return "", fmt.Errorf("search: %v: %w", err, core.ErrEngineUnavailable)
	}
	return move, nil
}

// NewGame sends ucinewgame to every idle engine so the next search starts
// with clear hash tables. Engines busy in a search are skipped.
func (p *Pool) NewGame(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	var idle []*Instance
drain:
	for n := len(p.pool); n > 0; n-- {
		select {
		case inst := <-p.pool:
			idle = append(idle, inst)
		default:
			break drain
		}
	}

	var result *multierror.Error
	for _, inst := range idle {
		if inst.Searcher != nil && inst.Searcher.Healthy() {
			if err := inst.Searcher.NewGame(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("instance %s: %w", inst.id, err))
			}
		}
		p.Release(inst)
	}
	return result.ErrorOrNil()
}

// Close stops every idle engine; engines still in use stop when released
func (p *Pool) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}

	var result *multierror.Error
	for {
		select {
		case inst := <-p.pool:
			if inst.Searcher != nil {
				if err := inst.Searcher.Close(); err != nil {
					result = multierror.Append(result, fmt.Errorf("instance %s: %w", inst.id, err))
				}
			}
		default:
			return result.ErrorOrNil()
		}
	}
}
