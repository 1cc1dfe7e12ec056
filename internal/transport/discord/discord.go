// Package discord connects the bot to Discord through discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
)

// Discord implements transport.Runner on a bot session
type Discord struct {
	session  *discordgo.Session
	serverID string

	mu     sync.RWMutex
	emojis map[string]map[string]string // guildID → name → token

	log *zap.Logger
}

// New creates a bot session. serverID is the emoji server: when set, its
// custom emojis are used in every channel the bot plays in. Without it each
// guild's own emojis are used.
func New(token, serverID string, logger *zap.Logger) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildEmojis

	return &Discord{
		session:  s,
		serverID: serverID,
		emojis:   make(map[string]map[string]string),
		log:      logger,
	}, nil
}

// Run opens the gateway connection and dispatches messages until ctx is done
func (d *Discord) Run(ctx context.Context, handler transport.Handler) error {
	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.log.Info("logged in",
			zap.String("user", r.User.String()),
			zap.String("id", r.User.ID),
		)
		if d.serverID == "" {
			return
		}
		if err := d.RefreshEmojis(ctx, d.serverID); err != nil {
			d.log.Error("server not found", zap.String("server", d.serverID), zap.Error(err))
		}
	})
	d.session.AddHandler(d.onEmojisUpdate)
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		handler(ctx, transport.Incoming{
			ChannelID: m.ChannelID,
			GuildID:   m.GuildID,
			MessageID: m.ID,
			AuthorID:  m.Author.ID,
			Content:   m.Content,
		})
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}

	<-ctx.Done()
	return d.session.Close()
}

func (d *Discord) onEmojisUpdate(_ *discordgo.Session, e *discordgo.GuildEmojisUpdate) {
	d.storeEmojis(e.GuildID, e.Emojis)
	d.log.Debug("emoji list updated", zap.String("guild", e.GuildID), zap.Int("count", len(e.Emojis)))
}

func (d *Discord) storeEmojis(guildID string, list []*discordgo.Emoji) {
	names := make(map[string]string, len(list))
	for _, e := range list {
		names[e.Name] = e.MessageFormat()
	}
	d.mu.Lock()
	d.emojis[guildID] = names
	d.mu.Unlock()
}

// emojiGuild returns the guild whose emojis serve a message from guildID
func (d *Discord) emojiGuild(guildID string) string {
	if d.serverID != "" {
		return d.serverID
	}
	return guildID
}

// RefreshEmojis reloads the emoji list serving guildID
func (d *Discord) RefreshEmojis(ctx context.Context, guildID string) error {
	guildID = d.emojiGuild(guildID)
	if guildID == "" {
		return nil
	}
	list, err := d.session.GuildEmojis(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetching emojis of guild %s: %w", guildID, err)
	}
	d.storeEmojis(guildID, list)
	return nil
}

// ResolveEmoji returns the <:name:id> token of an emoji from the emoji server,
// or from guildID when no server is configured. The list is loaded on first use.
func (d *Discord) ResolveEmoji(ctx context.Context, guildID, name string) (string, bool, error) {
	guildID = d.emojiGuild(guildID)
	if guildID == "" {
		return "", false, nil
	}

	d.mu.RLock()
	names, loaded := d.emojis[guildID]
	d.mu.RUnlock()

	if !loaded {
		if err := d.RefreshEmojis(ctx, guildID); err != nil {
			return "", false, err
		}
		d.mu.RLock()
		names = d.emojis[guildID]
		d.mu.RUnlock()
	}

	token, ok := names[name]
	return token, ok, nil
}

func (d *Discord) Send(ctx context.Context, channelID, text string) (transport.Message, error) {
	m, err := d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return transport.Message{}, wrap(err)
	}
	return message(m), nil
}

func (d *Discord) Edit(ctx context.Context, msg transport.Message, text string) (transport.Message, error) {
	m, err := d.session.ChannelMessageEdit(msg.ChannelID, msg.ID, text, discordgo.WithContext(ctx))
	if err != nil {
		return transport.Message{}, wrap(err)
	}
	return message(m), nil
}

func (d *Discord) Delete(ctx context.Context, msg transport.Message) error {
	return wrap(d.session.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithContext(ctx)))
}

func (d *Discord) Fetch(ctx context.Context, channelID, messageID string) (transport.Message, error) {
	m, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return transport.Message{}, wrap(err)
	}
	return message(m), nil
}

func message(m *discordgo.Message) transport.Message {
	return transport.Message{ChannelID: m.ChannelID, ID: m.ID, Content: m.Content}
}

// wrap maps a missing message to transport.ErrMessageNotFound
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%v: %w", err, transport.ErrMessageNotFound)
	}
	return err
}
