package storage

import "time"

// GameRecord is a row in the games table
type GameRecord struct {
	GameID       string    `db:"game_id"`
	ChannelID    string    `db:"channel_id"`
	GuildID      string    `db:"guild_id"`
	HumanColor   string    `db:"human_color"` // "w" or "b"
	InitialFEN   string    `db:"initial_fen"`
	StartTimeUTC time.Time `db:"start_time_utc"`
}

// MoveRecord is a row in the moves table
type MoveRecord struct {
	MoveID       int64     `db:"move_id"`
	GameID       string    `db:"game_id"`
	MoveNumber   int       `db:"move_number"`
	MoveUCI      string    `db:"move_uci"`
	FENAfterMove string    `db:"fen_after_move"`
	PlayerColor  string    `db:"player_color"`
	ByEngine     bool      `db:"by_engine"`
	MoveTimeUTC  time.Time `db:"move_time_utc"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	guild_id TEXT NOT NULL DEFAULT '',
	human_color TEXT NOT NULL CHECK(human_color IN ('w', 'b')),
	initial_fen TEXT NOT NULL,
	start_time_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT NOT NULL,
	move_number INTEGER NOT NULL,
	move_uci TEXT NOT NULL,
	fen_after_move TEXT NOT NULL,
	player_color TEXT NOT NULL CHECK(player_color IN ('w', 'b')),
	by_engine INTEGER NOT NULL DEFAULT 0,
	move_time_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games(game_id) ON DELETE CASCADE,
	UNIQUE(game_id, move_number)
);

CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);
CREATE INDEX IF NOT EXISTS idx_games_channel ON games(channel_id);
`
