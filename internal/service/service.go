package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/storage"
)

// Engine picks a move for the side to move in a FEN position.
// An empty move means the engine has none.
type Engine interface {
	BestMove(ctx context.Context, fen string) (string, error)
}

type Config struct {
	HumanColor    core.Color
	EngineTimeout time.Duration
	// EngineRetries is the number of extra attempts after a failed engine call
	EngineRetries int
	SessionTTL    time.Duration
}

// Service owns the per-channel game sessions
type Service struct {
	sessions map[string]*game.Session
	mu       sync.RWMutex
	engine   Engine
	store    *storage.Store // nil if archiving is disabled
	waiters  *waitRegistry
	cfg      Config
	log      *zap.Logger
}

// New creates a service. store may be nil.
func New(engine Engine, store *storage.Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 15 * time.Second
	}
	if cfg.EngineRetries < 0 {
		cfg.EngineRetries = 0
	}
	return &Service{
		sessions: make(map[string]*game.Session),
		engine:   engine,
		store:    store,
		waiters:  newWaitRegistry(),
		cfg:      cfg,
		log:      logger,
	}
}

// session returns the channel's session, creating it on first use
func (s *Service) session(channelID, guildID string) *game.Session {
	s.mu.RLock()
	sess, ok := s.sessions[channelID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[channelID]; ok {
		return sess
	}

	sess = game.New(channelID, guildID, s.cfg.HumanColor)
	s.sessions[channelID] = sess
	s.log.Info("session created",
		zap.String("channel", channelID),
		zap.String("game", sess.ID()),
	)
	s.recordGame(sess)
	return sess
}

// WithSession runs fn while holding the channel's session lock. Commands on
// one channel run one at a time; other channels are not blocked.
func (s *Service) WithSession(ctx context.Context, channelID, guildID string, fn func(*game.Session) error) error {
	for {
		sess := s.session(channelID, guildID)
		sess.Lock()

		// evicted while we waited for the lock
		s.mu.RLock()
		current := s.sessions[channelID] == sess
		s.mu.RUnlock()
		if !current {
			sess.Unlock()
			continue
		}

		err := ctx.Err()
		if err == nil {
			if guildID != "" && sess.GuildID() == "" {
				sess.SetGuildID(guildID)
			}
			sess.Touch()
			err = fn(sess)
		}
		version := sess.Snapshot().Version
		sess.Unlock()

		s.waiters.notify(channelID, version)
		return err
	}
}

// Lookup returns the latest snapshot of a channel's game without waiting on
// its lock
func (s *Service) Lookup(channelID string) (*game.Snapshot, error) {
	s.mu.RLock()
	sess, ok := s.sessions[channelID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", channelID, core.ErrGameNotFound)
	}
	return sess.Snapshot(), nil
}

// Snapshots returns every live game ordered by channel id
func (s *Service) Snapshots() []*game.Snapshot {
	s.mu.RLock()
	snaps := make([]*game.Snapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		snaps = append(snaps, sess.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].ChannelID < snaps[j].ChannelID
	})
	return snaps
}

// Count returns the number of live sessions
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StorageHealth reports the archive status
func (s *Service) StorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

func (s *Service) recordGame(sess *game.Session) {
	if s.store == nil {
		return
	}
	s.store.RecordNewGame(storage.GameRecord{
		GameID:       sess.ID(),
		ChannelID:    sess.ChannelID(),
		GuildID:      sess.GuildID(),
		HumanColor:   sess.HumanColor().String(),
		InitialFEN:   board.StartingFEN,
		StartTimeUTC: time.Now().UTC(),
	})
}

func (s *Service) recordMove(sess *game.Session, m board.Move, mover core.Color, byEngine bool) {
	if s.store == nil {
		return
	}
	s.store.RecordMove(storage.MoveRecord{
		GameID:       sess.ID(),
		MoveNumber:   len(sess.Moves()),
		MoveUCI:      m.String(),
		FENAfterMove: sess.FEN(),
		PlayerColor:  mover.String(),
		ByEngine:     byEngine,
		MoveTimeUTC:  time.Now().UTC(),
	})
}

// Shutdown releases the archive and the engine if it is closable
func (s *Service) Shutdown() error {
	var result *multierror.Error

	if closer, ok := s.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("engine: %w", err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("storage: %w", err))
		}
	}

	s.mu.Lock()
	s.sessions = make(map[string]*game.Session)
	s.mu.Unlock()

	return result.ErrorOrNil()
}
