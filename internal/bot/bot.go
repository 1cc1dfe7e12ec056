// Package bot turns chat messages into chess commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/render"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/service"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
)

const errorPrefix = "🚫 Error: "

type Config struct {
	Prefix string
	// Border adds rank and file labels to board lines
	Border bool
	// EmojiFallback draws unicode glyphs for emojis the guild lacks
	EmojiFallback bool
	// ErrorTTL is how long error replies stay in the channel
	ErrorTTL time.Duration
}

// Command is a chat command and its handler
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     func(ctx context.Context, in transport.Incoming, args []string) error
}

// Bot dispatches prefixed messages to commands
type Bot struct {
	svc      *service.Service
	tr       transport.Transport
	cfg      Config
	commands map[string]*Command
	pending  sync.WaitGroup
	log      *zap.Logger
}

func New(svc *service.Service, tr transport.Transport, cfg Config, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	b := &Bot{
		svc:      svc,
		tr:       tr,
		cfg:      cfg,
		commands: make(map[string]*Command),
		log:      logger,
	}
	b.registerCommands()
	return b
}

func (b *Bot) Register(cmd *Command) {
	b.commands[cmd.Name] = cmd
}

// Handle runs the command in a message, if any. It is a transport.Handler.
func (b *Bot) Handle(ctx context.Context, in transport.Incoming) {
	if !strings.HasPrefix(in.Content, b.cfg.Prefix) {
		return
	}
	parts := strings.Fields(strings.TrimPrefix(in.Content, b.cfg.Prefix))
	if len(parts) == 0 {
		return
	}

	name := strings.ToLower(parts[0])
	cmd, ok := b.commands[name]
	if !ok {
		b.log.Debug("unknown command", zap.String("command", name), zap.String("channel", in.ChannelID))
		return
	}

	log := b.log.With(
		zap.String("command", name),
		zap.String("channel", in.ChannelID),
		zap.String("author", in.AuthorID),
	)
	log.Debug("command received")

	if err := cmd.Handler(ctx, in, parts[1:]); err != nil {
		log.Info("command failed", zap.String("code", core.Code(err)), zap.Error(err))
		b.reportError(ctx, in.ChannelID, err)
	}
}

// reportError posts the error and deletes it after ErrorTTL
func (b *Bot) reportError(ctx context.Context, channelID string, err error) {
	text := errorPrefix + b.userMessage(err)
	msg, sendErr := b.tr.Send(ctx, channelID, text)
	if sendErr != nil {
		b.log.Warn("failed to report error", zap.Error(sendErr))
		return
	}
	if b.cfg.ErrorTTL <= 0 {
		return
	}

	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		timer := time.NewTimer(b.cfg.ErrorTTL)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		delCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.tr.Delete(delCtx, msg); err != nil {
			b.log.Debug("failed to delete error message", zap.Error(err))
		}
	}()
}

// Wait blocks until scheduled error deletions are done
func (b *Bot) Wait() {
	b.pending.Wait()
}

func (b *Bot) userMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, core.ErrMissingEmoji) {
		msg = fmt.Sprintf("%s\nMissing emojis? Use %semojicheck", msg, b.cfg.Prefix)
	}
	return msg
}

// resolver resolves emoji names for a guild. Lookup errors count as missing.
func (b *Bot) resolver(ctx context.Context, guildID string, fallback bool) render.Resolver {
	r := func(name string) (string, bool) {
		token, ok, err := b.tr.ResolveEmoji(ctx, guildID, name)
		if err != nil {
			b.log.Warn("emoji lookup failed", zap.String("guild", guildID), zap.Error(err))
			return "", false
		}
		return token, ok
	}
	if fallback {
		return render.WithFallback(r)
	}
	return r
}

func (b *Bot) helpText() string {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range names {
		cmd := b.commands[name]
		fmt.Fprintf(&sb, "  %s%-24s %s\n", b.cfg.Prefix, cmd.Usage, cmd.Description)
	}
	return "```" + sb.String() + "```"
}
