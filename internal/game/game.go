package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// BoardLine is one posted board message and the text it currently shows
type BoardLine struct {
	MessageID string
	Content   string
}

// Snapshot is an immutable copy of a session, safe to read without the lock
type Snapshot struct {
	GameID     string
	ChannelID  string
	GuildID    string
	Board      board.Board
	Turn       core.Color
	HumanColor core.Color
	Moves      []string
	FEN        string
	Version    uint64 // grows with every move and reset
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EngineTurn reports whether the engine is to move
func (s *Snapshot) EngineTurn() bool {
	return s.Turn != s.HumanColor
}

// Session is the game played in one chat channel.
// Callers hold the embedded mutex around every method that mutates it.
type Session struct {
	sync.Mutex

	id         string
	channelID  string
	guildID    string
	board      board.Board
	turn       core.Color
	humanColor core.Color
	moves      []string
	lines      []BoardLine
	version    uint64
	createdAt  time.Time
	updatedAt  time.Time

	snap atomic.Pointer[Snapshot]
}

// New creates a session holding the initial position with white to move
func New(channelID, guildID string, humanColor core.Color) *Session {
	if humanColor != core.ColorBlack {
		humanColor = core.ColorWhite
	}
	s := &Session{
		channelID:  channelID,
		guildID:    guildID,
		humanColor: humanColor,
	}
	s.reset()
	return s
}

func (s *Session) reset() {
	now := time.Now().UTC()
	s.id = uuid.New().String()
	s.board = board.New()
	s.turn = core.ColorWhite
	s.moves = nil
	s.version++
	s.createdAt = now
	s.updatedAt = now
	s.publish()
}

// Reset starts a new game in the same channel. Posted board lines are kept
// so the caller can replace them.
func (s *Session) Reset() {
	s.reset()
}

func (s *Session) publish() {
	moves := make([]string, len(s.moves))
	copy(moves, s.moves)
	s.snap.Store(&Snapshot{
		GameID:     s.id,
		ChannelID:  s.channelID,
		GuildID:    s.guildID,
		Board:      s.board,
		Turn:       s.turn,
		HumanColor: s.humanColor,
		Moves:      moves,
		FEN:        board.SerializePosition(s.board, s.turn),
		Version:    s.version,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	})
}

// Snapshot returns the last published state without locking
func (s *Session) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Session) ID() string              { return s.id }
func (s *Session) ChannelID() string       { return s.channelID }
func (s *Session) GuildID() string         { return s.guildID }
func (s *Session) Board() board.Board      { return s.board }
func (s *Session) Turn() core.Color        { return s.turn }
func (s *Session) HumanColor() core.Color  { return s.humanColor }
func (s *Session) UpdatedAt() time.Time    { return s.updatedAt }
func (s *Session) FEN() string             { return board.SerializePosition(s.board, s.turn) }
func (s *Session) EngineTurn() bool        { return s.turn != s.humanColor }
func (s *Session) SetGuildID(guild string) { s.guildID = guild }

// Moves returns a copy of the half-moves played so far
func (s *Session) Moves() []string {
	moves := make([]string, len(s.moves))
	copy(moves, s.moves)
	return moves
}

// PlayerMove applies a human move for the side to move.
// On error nothing changes.
func (s *Session) PlayerMove(src, dst string) (board.Move, error) {
	next, m, err := board.ApplyPlayerMove(s.board, src, dst, s.turn)
	if err != nil {
		return board.Move{}, err
	}
	s.commit(next, m)
	return m, nil
}

// EngineMove applies a move returned by the engine for the side to move
func (s *Session) EngineMove(m board.Move) error {
	if err := board.CheckTurn(s.board, m.From, s.turn); err != nil {
		return fmt.Errorf("engine move %s: %w", m, err)
	}
	next, err := board.Apply(s.board, m.From, m.To)
	if err != nil {
		return fmt.Errorf("engine move %s: %w", m, err)
	}
	s.commit(next, m)
	return nil
}

func (s *Session) commit(next board.Board, m board.Move) {
	s.board = next
	s.turn = core.OppositeColor(s.turn)
	s.moves = append(s.moves, m.String())
	s.version++
	s.updatedAt = time.Now().UTC()
	s.publish()
}

// Touch marks the session as active
func (s *Session) Touch() {
	s.updatedAt = time.Now().UTC()
	s.publish()
}

// Lines returns the tracked board-line messages
func (s *Session) Lines() []BoardLine {
	lines := make([]BoardLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// SetLines replaces the tracked board-line messages
func (s *Session) SetLines(lines []BoardLine) {
	s.lines = lines
}
