package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	writeQueueSize = 1000
	drainTimeout   = 2 * time.Second
)

// Store archives games and moves in SQLite. Writes are queued and applied by
// a single writer goroutine; a failed write degrades the store and later
// writes are dropped.
type Store struct {
	db           *sql.DB
	path         string
	writeChan    chan writeOp
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeOnce    sync.Once
	log          *zap.Logger
}

// NewStore opens the database at path and starts the async writer
func NewStore(path string, walMode bool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// pragmas go in the DSN so every pooled connection gets them
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if walMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      path,
		writeChan: make(chan writeOp, writeQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger,
	}
	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// writeOp is a queued write; an op with only done set is a Sync marker
type writeOp struct {
	fn   func(*sql.Tx) error
	done chan struct{}
}

func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// drain what is already queued
			for {
				select {
				case op := <-s.writeChan:
					s.run(op)
				default:
					return
				}
			}

		case op := <-s.writeChan:
			s.run(op)
		}
	}
}

func (s *Store) run(op writeOp) {
	if op.done != nil {
		close(op.done)
	}
	if op.fn == nil || !s.healthStatus.Load() {
		return
	}
	s.executeWrite(op.fn)
}

func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		s.degrade("begin transaction", err)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		s.degrade("write", err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.degrade("commit", err)
	}
}

func (s *Store) degrade(op string, err error) {
	s.log.Error("storage degraded", zap.String("op", op), zap.Error(err))
	s.healthStatus.Store(false)
}

func (s *Store) enqueue(what string, fn func(*sql.Tx) error) {
	if !s.healthStatus.Load() || s.ctx.Err() != nil {
		return
	}
	select {
	case s.writeChan <- writeOp{fn: fn}:
	default:
		s.log.Warn("storage write queue full, dropping record", zap.String("record", what))
	}
}

// RecordNewGame queues a games row
func (s *Store) RecordNewGame(record GameRecord) {
	s.enqueue("game", func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO games (
			game_id, channel_id, guild_id, human_color, initial_fen, start_time_utc
		) VALUES (?, ?, ?, ?, ?, ?)`,
			record.GameID, record.ChannelID, record.GuildID,
			record.HumanColor, record.InitialFEN, record.StartTimeUTC,
		)
		return err
	})
}

// RecordMove queues a moves row
func (s *Store) RecordMove(record MoveRecord) {
	s.enqueue("move", func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO moves (
			game_id, move_number, move_uci, fen_after_move, player_color, by_engine, move_time_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.GameID, record.MoveNumber, record.MoveUCI,
			record.FENAfterMove, record.PlayerColor, record.ByEngine, record.MoveTimeUTC,
		)
		return err
	})
}

// Sync waits until every write queued before the call has been applied
func (s *Store) Sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case s.writeChan <- writeOp{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

// Close flushes queued writes and closes the database
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(drainTimeout):
			s.log.Warn("storage writer shutdown timeout, some writes may be lost")
		}

		err = s.db.Close()
	})
	return err
}

// InitDB creates the schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// DeleteDB closes the store and removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}

	return nil
}

// QueryGames lists games, newest first. Empty or "*" filters match everything.
func (s *Store) QueryGames(gameID, channelID string) ([]GameRecord, error) {
	query := `SELECT game_id, channel_id, guild_id, human_color, initial_fen, start_time_utc
	FROM games WHERE 1=1`

	var args []interface{}

	if gameID != "" && gameID != "*" {
		query += " AND game_id = ?"
		args = append(args, gameID)
	}

	if channelID != "" && channelID != "*" {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}

	query += " ORDER BY start_time_utc DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.GameID, &g.ChannelID, &g.GuildID, &g.HumanColor, &g.InitialFEN, &g.StartTimeUTC); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return games, nil
}

// QueryMoves lists the moves of one game in play order
func (s *Store) QueryMoves(gameID string) ([]MoveRecord, error) {
	rows, err := s.db.Query(`SELECT move_id, game_id, move_number, move_uci, fen_after_move, player_color, by_engine, move_time_utc
	FROM moves WHERE game_id = ? ORDER BY move_number`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var moves []MoveRecord
	for rows.Next() {
		var m MoveRecord
		if err := rows.Scan(&m.MoveID, &m.GameID, &m.MoveNumber, &m.MoveUCI, &m.FENAfterMove, &m.PlayerColor, &m.ByEngine, &m.MoveTimeUTC); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return moves, nil
}
