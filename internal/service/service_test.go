package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/storage"
)

// scriptedEngine answers from a queue of replies
type scriptedEngine struct {
	mu       sync.Mutex
	replies  []reply
	calls    int
	fens     []string
	delay    time.Duration
	newGames int
	resetErr error
}

func (e *scriptedEngine) NewGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newGames++
	return e.resetErr
}

type reply struct {
	move string
	err  error
}

func (e *scriptedEngine) BestMove(ctx context.Context, fen string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.fens = append(e.fens, fen)
	var r reply
	if len(e.replies) > 0 {
		r = e.replies[0]
		e.replies = e.replies[1:]
	}
	delay := e.delay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.move, r.err
}

func newService(engine Engine, store *storage.Store) *Service {
	return New(engine, store, Config{
		HumanColor:    core.ColorWhite,
		EngineTimeout: time.Second,
		EngineRetries: 1,
		SessionTTL:    time.Hour,
	}, zap.NewNop())
}

func playMove(t *testing.T, svc *Service, channel, src, dst string) (board.Move, bool, error) {
	t.Helper()
	var got board.Move
	var played bool
	err := svc.WithSession(context.Background(), channel, "guild", func(sess *game.Session) error {
		if _, err := svc.PlayerMove(sess, src, dst); err != nil {
			return err
		}
		var err error
		got, played, err = svc.EngineReply(context.Background(), sess)
		return err
	})
	return got, played, err
}

func TestMoveAndEngineReply(t *testing.T) {
	eng := &scriptedEngine{replies: []reply{{move: "e7e5"}}}
	svc := newService(eng, nil)

	m, played, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)
	require.True(t, played)
	assert.Equal(t, "e7e5", m.String())

	require.Len(t, eng.fens, 1)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b - - 0 1", eng.fens[0])

	snap, err := svc.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, core.ColorWhite, snap.Turn)
	assert.Equal(t, []string{"e2e4", "e7e5"}, snap.Moves)
	assert.Equal(t, "guild", snap.GuildID)
}

func TestIllegalMoveSkipsEngine(t *testing.T) {
	eng := &scriptedEngine{}
	svc := newService(eng, nil)

	_, _, err := playMove(t, svc, "c1", "e7", "e5")
	require.ErrorIs(t, err, core.ErrIllegalMove)
	assert.Contains(t, err.Error(), "not your turn (white's move)")
	assert.Zero(t, eng.calls)

	snap, _ := svc.Lookup("c1")
	assert.Equal(t, board.StartingFEN, snap.FEN)
}

func TestEngineRetry(t *testing.T) {
	eng := &scriptedEngine{replies: []reply{{err: errors.New("broken pipe")}, {move: "e7e5"}}}
	svc := newService(eng, nil)

	_, played, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)
	assert.True(t, played)
	assert.Equal(t, 2, eng.calls)
}

func TestEngineUnavailableLeavesEngineTurn(t *testing.T) {
	boom := errors.New("broken pipe")
	eng := &scriptedEngine{replies: []reply{{err: boom}, {err: boom}}}
	svc := newService(eng, nil)

	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
	assert.Equal(t, 2, eng.calls, "one call plus one retry")

	snap, _ := svc.Lookup("c1")
	assert.Equal(t, core.ColorBlack, snap.Turn)
	assert.True(t, snap.EngineTurn())

	// the engine catches up before the next player move
	eng.replies = []reply{{move: "e7e5"}}
	err = svc.WithSession(context.Background(), "c1", "", func(sess *game.Session) error {
		m, played, err := svc.EngineReply(context.Background(), sess)
		require.NoError(t, err)
		assert.True(t, played)
		assert.Equal(t, "e7e5", m.String())
		_, err = svc.PlayerMove(sess, "d2", "d4")
		return err
	})
	require.NoError(t, err)
}

func TestEngineTimeout(t *testing.T) {
	eng := &scriptedEngine{delay: time.Minute}
	svc := New(eng, nil, Config{EngineTimeout: 20 * time.Millisecond}, nil)

	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
	assert.Equal(t, 1, eng.calls)
}

func TestEngineNoMove(t *testing.T) {
	svc := newService(&scriptedEngine{replies: []reply{{move: ""}}}, nil)

	_, played, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)
	assert.False(t, played)
}

func TestEngineMalformedMove(t *testing.T) {
	svc := newService(&scriptedEngine{replies: []reply{{move: "e7"}}}, nil)

	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.ErrorIs(t, err, core.ErrMalformedMove)
}

func TestNoEngine(t *testing.T) {
	svc := newService(nil, nil)
	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
}

func TestLookupUnknownChannel(t *testing.T) {
	svc := newService(&scriptedEngine{}, nil)
	_, err := svc.Lookup("nope")
	assert.ErrorIs(t, err, core.ErrGameNotFound)
}

func TestNewGame(t *testing.T) {
	eng := &scriptedEngine{replies: []reply{{move: "e7e5"}}, resetErr: errors.New("engine gone")}
	svc := newService(eng, nil)
	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)
	before, _ := svc.Lookup("c1")

	require.NoError(t, svc.WithSession(context.Background(), "c1", "", func(sess *game.Session) error {
		svc.NewGame(context.Background(), sess)
		return nil
	}))

	after, _ := svc.Lookup("c1")
	assert.NotEqual(t, before.GameID, after.GameID)
	assert.Equal(t, board.StartingFEN, after.FEN)
	assert.Empty(t, after.Moves)
	assert.Equal(t, 1, eng.newGames, "a failed engine reset does not block the new game")
}

func TestChannelsAreIndependent(t *testing.T) {
	eng := &scriptedEngine{replies: []reply{{move: "e7e5"}}}
	svc := newService(eng, nil)

	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)

	require.NoError(t, svc.WithSession(context.Background(), "c2", "", func(*game.Session) error { return nil }))
	c2, err := svc.Lookup("c2")
	require.NoError(t, err)
	assert.Equal(t, board.StartingFEN, c2.FEN)
	assert.Len(t, svc.Snapshots(), 2)
	assert.Equal(t, "c1", svc.Snapshots()[0].ChannelID)
}

func TestSameChannelSerialised(t *testing.T) {
	svc := newService(&scriptedEngine{}, nil)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.WithSession(context.Background(), "c1", "", func(*game.Session) error {
				n := inside.Add(1)
				for {
					old := maxInside.Load()
					if n <= old || maxInside.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside.Load())
}

func TestChannelsRunInParallel(t *testing.T) {
	svc := newService(&scriptedEngine{}, nil)

	release := make(chan struct{})
	entered := make(chan struct{})
	go svc.WithSession(context.Background(), "slow", "", func(*game.Session) error {
		close(entered)
		<-release
		return nil
	})
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- svc.WithSession(context.Background(), "fast", "", func(*game.Session) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command on another channel was blocked")
	}

	// the busy channel is still readable
	_, err := svc.Lookup("slow")
	assert.NoError(t, err)
	close(release)
}

func TestCancelledContext(t *testing.T) {
	svc := newService(&scriptedEngine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := svc.WithSession(ctx, "c1", "", func(*game.Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestEvictIdle(t *testing.T) {
	svc := newService(&scriptedEngine{}, nil)
	require.NoError(t, svc.WithSession(context.Background(), "old", "", func(*game.Session) error { return nil }))
	require.NoError(t, svc.WithSession(context.Background(), "busy", "", func(*game.Session) error { return nil }))

	svc.mu.RLock()
	busy := svc.sessions["busy"]
	svc.mu.RUnlock()
	busy.Lock()

	n := svc.evictIdle(time.Now().Add(2 * time.Hour))
	busy.Unlock()

	assert.Equal(t, 1, n)
	_, err := svc.Lookup("old")
	assert.ErrorIs(t, err, core.ErrGameNotFound)
	_, err = svc.Lookup("busy")
	assert.NoError(t, err)

	assert.Zero(t, svc.evictIdle(time.Now()))
}

func TestWaitForChange(t *testing.T) {
	svc := newService(&scriptedEngine{replies: []reply{{move: "e7e5"}}}, nil)
	require.NoError(t, svc.WithSession(context.Background(), "c1", "", func(*game.Session) error { return nil }))
	start, _ := svc.Lookup("c1")

	got := make(chan *game.Snapshot, 1)
	go func() {
		snap, err := svc.WaitForChange(context.Background(), "c1", start.Version)
		assert.NoError(t, err)
		got <- snap
	}()

	time.Sleep(20 * time.Millisecond)
	_, _, err := playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)

	select {
	case snap := <-got:
		assert.Equal(t, []string{"e2e4", "e7e5"}, snap.Moves)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken")
	}

	// a stale version returns at once
	snap, err := svc.WaitForChange(context.Background(), "c1", start.Version)
	require.NoError(t, err)
	assert.NotEqual(t, start.Version, snap.Version)
}

func TestRecordsToStorage(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "games.db"), false, nil)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())

	svc := newService(&scriptedEngine{replies: []reply{{move: "e7e5"}}}, store)
	_, _, err = playMove(t, svc, "c1", "e2", "e4")
	require.NoError(t, err)
	assert.Equal(t, "ok", svc.StorageHealth())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.Sync(ctx))

	snap, _ := svc.Lookup("c1")
	games, err := store.QueryGames("", "c1")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, snap.GameID, games[0].GameID)

	moves, err := store.QueryMoves(snap.GameID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "w", moves[0].PlayerColor)
	assert.Equal(t, "b", moves[1].PlayerColor)
	assert.True(t, moves[1].ByEngine)
	assert.Equal(t, snap.FEN, moves[1].FENAfterMove)

	require.NoError(t, svc.Shutdown())
}
