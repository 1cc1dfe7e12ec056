package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/bot"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/config"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/engine"
	chesshttp "github.com/Dzavoy/Discord-Chess-Bot/internal/http"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/service"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/storage"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport/console"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport/discord"
)

const gracefulShutdownTimeout = 5 * time.Second

type globalFlags struct {
	configPath string
	envFile    string
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	var (
		pidPath string
		pidLock bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve chess commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pidLock && pidPath == "" {
				return errors.New("--pid-lock requires --pid")
			}

			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Discord.Token == "" {
				return fmt.Errorf("%s is not set", config.EnvDiscordToken)
			}

			if pidPath != "" {
				cleanup, err := managePIDFile(pidPath, pidLock)
				if err != nil {
					return fmt.Errorf("failed to manage PID file: %w", err)
				}
				defer cleanup()
				log.Info("PID file created", zap.String("path", pidPath), zap.Bool("lock", pidLock))
			}

			tr, err := discord.New(cfg.Discord.Token, cfg.Discord.ServerID, log.Named("discord"))
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log, tr)
		},
	}
	cmd.Flags().StringVar(&pidPath, "pid", "", "Optional path to write PID file")
	cmd.Flags().BoolVar(&pidLock, "pid-lock", false, "Lock PID file to allow only one instance (requires --pid)")
	return cmd
}

func newConsoleCommand(flags *globalFlags) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Play against the engine in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			// terminals have no custom emojis
			cfg.Bot.EmojiFallback = true
			return serve(cmd.Context(), cfg, log, console.New(os.Stdin, os.Stdout, history))
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "readline history file")
	return cmd
}

func loadConfig(flags *globalFlags) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return cfg, nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// chatTransport is what serve needs from a chat platform adapter
type chatTransport interface {
	transport.Transport
	transport.Runner
}

// serve wires engine, archive, sessions and bot to tr and runs until tr stops
// or a termination signal arrives
func serve(parent context.Context, cfg config.Config, log *zap.Logger, tr chatTransport) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := engine.NewPool(ctx, cfg.Engine.PoolSize, engine.NewFactory(engine.Options{
		Path:            cfg.Engine.Path,
		Depth:           cfg.Engine.Depth,
		MoveTime:        cfg.Engine.MoveTime,
		Threads:         cfg.Engine.Threads,
		Hash:            cfg.Engine.Hash,
		SkillLevel:      cfg.Engine.SkillLevel,
		MinThinkingTime: cfg.Engine.MinThinkingTime,
		Extra:           cfg.Engine.Options,
	}, log.Named("engine")), log.Named("pool"))
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	var store *storage.Store
	if cfg.Storage.Path != "" {
		log.Info("initializing persistent storage", zap.String("path", cfg.Storage.Path))
		store, err = storage.NewStore(cfg.Storage.Path, cfg.Storage.WALMode, log.Named("storage"))
		if err == nil {
			err = store.InitDB()
		}
		if err != nil {
			pool.Close()
			if store != nil {
				store.Close()
			}
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	svc := service.New(pool, store, service.Config{
		HumanColor:    cfg.HumanSide(),
		EngineTimeout: cfg.Engine.Timeout,
		EngineRetries: cfg.Engine.Retries,
		SessionTTL:    cfg.Session.TTL,
	}, log.Named("service"))
	defer func() {
		if shutdownErr := svc.Shutdown(); shutdownErr != nil {
			err = multierror.Append(err, shutdownErr)
		}
	}()

	go svc.RunCleanupJob(ctx, cfg.Session.CleanupInterval)

	if cfg.HTTP.Enabled {
		app := chesshttp.NewFiberApp(svc, cfg.HTTP.DevMode)
		addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port))
		go func() {
			log.Info("admin API listening", zap.String("addr", addr))
			if err := app.Listen(addr); err != nil {
				log.Error("admin API stopped", zap.Error(err))
			}
		}()
		defer shutdownHTTP(app, log)
	}

	b := bot.New(svc, tr, bot.Config{
		Prefix:        cfg.Bot.Prefix,
		Border:        cfg.Bot.Border,
		EmojiFallback: cfg.Bot.EmojiFallback,
		ErrorTTL:      cfg.Bot.ErrorTTL,
	}, log.Named("bot"))

	log.Info("chess bot running", zap.String("engine", cfg.Engine.Path), zap.String("human", cfg.HumanSide().Name()))
	runErr := tr.Run(ctx, b.Handle)
	stop()
	b.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("shutting down")
	return nil
}

func shutdownHTTP(app *fiber.App, log *zap.Logger) {
	if err := app.ShutdownWithTimeout(gracefulShutdownTimeout); err != nil {
		log.Warn("admin API shutdown", zap.Error(err))
	}
}
