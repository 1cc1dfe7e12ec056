package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
)

// The methods below expect the caller to hold sess's lock, normally from
// inside WithSession.

// PlayerMove applies a human move and records it
func (s *Service) PlayerMove(sess *game.Session, src, dst string) (board.Move, error) {
	mover := sess.Turn()
	m, err := sess.PlayerMove(src, dst)
	if err != nil {
		return board.Move{}, err
	}
	s.recordMove(sess, m, mover, false)
	s.log.Debug("player move",
		zap.String("channel", sess.ChannelID()),
		zap.String("move", m.String()),
	)
	return m, nil
}

// EngineReply asks the engine for a move when it is the engine's turn and
// applies it. played is false when it was not the engine's turn or the engine
// has no move. Each attempt is bounded by the engine timeout; failed attempts
// are retried EngineRetries times before ErrEngineUnavailable is returned.
func (s *Service) EngineReply(ctx context.Context, sess *game.Session) (m board.Move, played bool, err error) {
	if !sess.EngineTurn() {
		return board.Move{}, false, nil
	}

	fen := sess.FEN()
	raw, err := s.bestMove(ctx, fen)
	if err != nil {
		return board.Move{}, false, err
	}
	if raw == "" {
		s.log.Info("engine has no move", zap.String("channel", sess.ChannelID()), zap.String("fen", fen))
		return board.Move{}, false, nil
	}

	m, err = board.ParseEngineMove(raw)
	if err != nil {
		return board.Move{}, false, err
	}

	mover := sess.Turn()
	if err = sess.EngineMove(m); err != nil {
		return board.Move{}, false, err
	}
	s.recordMove(sess, m, mover, true)
	s.log.Debug("engine move",
		zap.String("channel", sess.ChannelID()),
		zap.String("move", m.String()),
	)
	return m, true, nil
}

func (s *Service) bestMove(ctx context.Context, fen string) (string, error) {
	if s.engine == nil {
		return "", fmt.Errorf("no engine configured: %w", core.ErrEngineUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.EngineRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%v: %w", err, core.ErrEngineUnavailable)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
		move, err := s.engine.BestMove(callCtx, fen)
		cancel()
		if err == nil {
			return move, nil
		}

		lastErr = err
		s.log.Warn("engine call failed",
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", s.cfg.EngineRetries+1),
			zap.Error(err),
		)
	}

	if errors.Is(lastErr, core.ErrEngineUnavailable) {
		return "", lastErr
	}
	return "", fmt.Errorf("%v: %w", lastErr, core.ErrEngineUnavailable)
}

// gameResetter is implemented by engines that keep state between searches
type gameResetter interface {
	NewGame(ctx context.Context) error
}

// NewGame resets the session to the initial position under a new game id and
// tells the engine a new game started. An engine that fails to reset does not
// fail the command.
func (s *Service) NewGame(ctx context.Context, sess *game.Session) {
	old := sess.ID()
	sess.Reset()
	s.recordGame(sess)
	s.log.Info("new game",
		zap.String("channel", sess.ChannelID()),
		zap.String("previous", old),
		zap.String("game", sess.ID()),
	)

	if r, ok := s.engine.(gameResetter); ok {
		resetCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
		defer cancel()
		if err := r.NewGame(resetCtx); err != nil {
			s.log.Warn("engine reset failed", zap.String("channel", sess.ChannelID()), zap.Error(err))
		}
	}
}
