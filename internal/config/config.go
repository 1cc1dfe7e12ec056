// Package config loads bot settings from defaults, a YAML file, a .env file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// Environment overrides
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvServerID     = "SERVER_ID"
	EnvStockfish    = "STOCKFISH_PATH"
	EnvStoragePath  = "CHESSBOT_STORAGE_PATH"
	EnvLogLevel     = "CHESSBOT_LOG_LEVEL"
)

type Config struct {
	Discord Discord `yaml:"discord"`
	Bot     Bot     `yaml:"bot"`
	Engine  Engine  `yaml:"engine"`
	Session Session `yaml:"session"`
	Storage Storage `yaml:"storage"`
	HTTP    HTTP    `yaml:"http"`
	Log     Log     `yaml:"log"`
}

type Discord struct {
	Token    string `yaml:"token"`
	ServerID string `yaml:"server_id"`
}

type Bot struct {
	Prefix        string        `yaml:"prefix" validate:"required,max=5"`
	HumanColor    string        `yaml:"human_color" validate:"oneof=white black w b"`
	Border        bool          `yaml:"border"`
	EmojiFallback bool          `yaml:"emoji_fallback"`
	ErrorTTL      time.Duration `yaml:"error_ttl" validate:"min=0"`
}

type Engine struct {
	Path string `yaml:"path" validate:"required"`
	// Depth limits each search; MoveTime is used when Depth is 0
	Depth           int           `yaml:"depth" validate:"min=0,max=99"`
	MoveTime        time.Duration `yaml:"move_time" validate:"min=0"`
	Threads         int           `yaml:"threads" validate:"min=1,max=512"`
	Hash            int           `yaml:"hash" validate:"min=0,max=33554432"` // MB, 0 keeps the engine default
	MinThinkingTime int           `yaml:"min_thinking_time" validate:"min=0"`
	SkillLevel      int           `yaml:"skill_level" validate:"min=0,max=20"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	Retries         int           `yaml:"retries" validate:"min=0,max=10"`
	PoolSize        int           `yaml:"pool_size" validate:"min=1,max=64"`
	// Options are extra UCI options sent as "setoption name <key> value <value>"
	Options map[string]string `yaml:"options"`
}

type Session struct {
	TTL             time.Duration `yaml:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
}

type Storage struct {
	// Path of the SQLite archive. Empty disables archiving.
	Path    string `yaml:"path"`
	WALMode bool   `yaml:"wal_mode"`
}

type HTTP struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" validate:"required_if=Enabled true"`
	Port    int    `yaml:"port" validate:"min=0,max=65535"`
	DevMode bool   `yaml:"dev_mode"`
}

type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format is "console" or "json"
	Format string `yaml:"format" validate:"oneof=console json"`
}

func Default() Config {
	return Config{
		Bot: Bot{
			Prefix:     "!",
			HumanColor: "white",
			Border:     true,
			ErrorTTL:   10 * time.Second,
		},
		Engine: Engine{
			Path:            "stockfish",
			Depth:           18,
			Threads:         2,
			MinThinkingTime: 30,
			SkillLevel:      20,
			Timeout:         15 * time.Second,
			Retries:         1,
			PoolSize:        1,
		},
		Session: Session{
			TTL:             24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		HTTP: HTTP{
			Host: "localhost",
			Port: 8080,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. Either path may be empty; a named file that
// does not exist is an error for the YAML file and ignored for the .env file.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if envFile != "" {
		// existing environment variables win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Discord.Token, EnvDiscordToken)
	set(&cfg.Discord.ServerID, EnvServerID)
	set(&cfg.Engine.Path, EnvStockfish)
	set(&cfg.Storage.Path, EnvStoragePath)
	set(&cfg.Log.Level, EnvLogLevel)
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HumanSide returns the configured human colour
func (c Config) HumanSide() core.Color {
	color, err := core.ParseColor(c.Bot.HumanColor)
	if err != nil {
		return core.ColorWhite
	}
	return color
}

// NewLogger builds the zap logger described by c.Log
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = level > zapcore.DebugLevel
	return zc.Build()
}
