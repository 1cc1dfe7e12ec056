package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

type fakeSearcher struct {
	mu         sync.Mutex
	fen        string
	move       string
	err        error
	newGameErr error
	newGames   int
	healthy    bool
	closed     bool
}

func (f *fakeSearcher) NewGame(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newGames++
	return f.newGameErr
}

func (f *fakeSearcher) SetPosition(fen string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fen = fen
	return nil
}

func (f *fakeSearcher) BestMove(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.move, f.err
}

func (f *fakeSearcher) Healthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy && !f.closed
}

func (f *fakeSearcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeFactory struct {
	started atomic.Int32
	fail    atomic.Bool
	made    []*fakeSearcher
	mu      sync.Mutex
	move    string
}

func (f *fakeFactory) New(ctx context.Context) (Searcher, error) {
	if f.fail.Load() {
		return nil, errors.New("no such binary")
	}
	f.started.Add(1)
	s := &fakeSearcher{move: f.move, healthy: true}
	f.mu.Lock()
	f.made = append(f.made, s)
	f.mu.Unlock()
	return s, nil
}

func TestPoolBestMove(t *testing.T) {
	ff := &fakeFactory{move: "e7e5"}
	p, err := NewPool(context.Background(), 2, ff.New, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.EqualValues(t, 2, ff.started.Load())

	move, err := p.BestMove(context.Background(), "fen")
	require.NoError(t, err)
	assert.Equal(t, "e7e5", move)
}

func TestPoolSearchErrorIsEngineUnavailable(t *testing.T) {
	ff := &fakeFactory{}
	p, err := NewPool(context.Background(), 1, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	ff.made[0].err = context.DeadlineExceeded
	_, err = p.BestMove(context.Background(), "fen")
	assert.ErrorIs(t, err, core.ErrEngineUnavailable)
}

func TestPoolAcquireWaitsForRelease(t *testing.T) {
	ff := &fakeFactory{}
	p, err := NewPool(context.Background(), 1, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	inst, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = p.BestMove(ctx, "fen")
	require.ErrorIs(t, err, core.ErrEngineUnavailable)

	require.NoError(t, p.Release(inst))
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, inst, again)
	require.NoError(t, p.Release(again))
}

func TestPoolNewGameResetsIdleEngines(t *testing.T) {
	ff := &fakeFactory{move: "e7e5"}
	p, err := NewPool(context.Background(), 3, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	busy, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.NewGame(context.Background()))
	for _, s := range ff.made {
		want := 1
		if s == busy.Searcher {
			want = 0
		}
		assert.Equal(t, want, s.newGames)
	}
	require.NoError(t, p.Release(busy))

	// every slot went back to the pool
	var held []*Instance
	for i := 0; i < 3; i++ {
		inst, err := p.Acquire(context.Background())
		require.NoError(t, err)
		held = append(held, inst)
	}
	for _, inst := range held {
		require.NoError(t, p.Release(inst))
	}

	ff.made[0].newGameErr = errors.New("broken pipe")
	assert.ErrorContains(t, p.NewGame(context.Background()), "broken pipe")

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.NewGame(context.Background()), ErrPoolClosed)
}

func TestPoolReleaseWrongInstance(t *testing.T) {
	ff := &fakeFactory{}
	p, err := NewPool(context.Background(), 1, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.ErrorIs(t, p.Release(&Instance{}), ErrWrongInstance)
	assert.ErrorIs(t, p.Release(nil), ErrWrongInstance)
}

func TestPoolRestartsUnhealthyEngine(t *testing.T) {
	ff := &fakeFactory{move: "a7a6"}
	p, err := NewPool(context.Background(), 1, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	first := ff.made[0]
	first.mu.Lock()
	first.healthy = false
	first.mu.Unlock()

	move, err := p.BestMove(context.Background(), "fen")
	require.NoError(t, err)
	assert.Equal(t, "a7a6", move)
	assert.True(t, first.closed)
	assert.EqualValues(t, 2, ff.started.Load())
}

func TestPoolRestartFailureKeepsSlot(t *testing.T) {
	ff := &fakeFactory{move: "a7a6"}
	p, err := NewPool(context.Background(), 1, ff.New, nil)
	require.NoError(t, err)
	defer p.Close()

	ff.made[0].Close()
	ff.fail.Store(true)

	_, err = p.BestMove(context.Background(), "fen")
	require.ErrorIs(t, err, core.ErrEngineUnavailable)

	// the slot is still there and comes back once the engine can start
	ff.fail.Store(false)
	move, err := p.BestMove(context.Background(), "fen")
	require.NoError(t, err)
	assert.Equal(t, "a7a6", move)
}

func TestNewPoolFailure(t *testing.T) {
	ff := &fakeFactory{}
	ff.fail.Store(true)
	_, err := NewPool(context.Background(), 1, ff.New, nil)
	assert.Error(t, err)
}

func TestPoolClose(t *testing.T) {
	ff := &fakeFactory{}
	p, err := NewPool(context.Background(), 2, ff.New, nil)
	require.NoError(t, err)

	inst, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	require.NoError(t, p.Release(inst))
	for _, s := range ff.made {
		assert.True(t, s.closed)
	}
}
