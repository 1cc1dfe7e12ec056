package http

import (
	"time"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
)

// Request types

type channelParams struct {
	ChannelID string `validate:"required,max=64,alphanum"`
}

type gameQuery struct {
	Wait    bool   `query:"wait"`
	Version uint64 `query:"version"`
}

type boardQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=ascii raw emoji"`
	Border bool   `query:"border"`
}

// Response types

type GameResponse struct {
	GameID     string    `json:"gameId"`
	ChannelID  string    `json:"channelId"`
	GuildID    string    `json:"guildId,omitempty"`
	FEN        string    `json:"fen"`
	Turn       string    `json:"turn"` // "w" or "b"
	HumanColor string    `json:"humanColor"`
	Moves      []string  `json:"moves"`
	Version    uint64    `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type GamesResponse struct {
	Games []GameResponse `json:"games"`
	Count int            `json:"count"`
}

type BoardResponse struct {
	FEN    string `json:"fen"`
	Format string `json:"format"`
	Board  string `json:"board"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Time     int64  `json:"time"`
	Sessions int    `json:"sessions"`
	Storage  string `json:"storage"`
}

func newGameResponse(snap *game.Snapshot) GameResponse {
	moves := snap.Moves
	if moves == nil {
		moves = []string{}
	}
	return GameResponse{
		GameID:     snap.GameID,
		ChannelID:  snap.ChannelID,
		GuildID:    snap.GuildID,
		FEN:        snap.FEN,
		Turn:       snap.Turn.String(),
		HumanColor: snap.HumanColor.Name(),
		Moves:      moves,
		Version:    snap.Version,
		CreatedAt:  snap.CreatedAt,
		UpdatedAt:  snap.UpdatedAt,
	}
}
