package transport

import (
	"context"
	"errors"
)

// ErrMessageNotFound is returned when a message id is unknown to the platform
var ErrMessageNotFound = errors.New("message not found")

// Message is a posted chat message
type Message struct {
	ChannelID string
	ID        string
	Content   string
}

// Incoming is a message received from a user
type Incoming struct {
	ChannelID string
	GuildID   string
	MessageID string
	AuthorID  string
	Content   string
}

// Message returns the incoming message as a posted message, for deletion
func (in Incoming) Message() Message {
	return Message{ChannelID: in.ChannelID, ID: in.MessageID, Content: in.Content}
}

// Handler receives user messages. It may be called concurrently.
type Handler func(ctx context.Context, in Incoming)

// Transport is the chat platform seen by the command layer
type Transport interface {
	Send(ctx context.Context, channelID, text string) (Message, error)
	Edit(ctx context.Context, msg Message, text string) (Message, error)
	Delete(ctx context.Context, msg Message) error
	Fetch(ctx context.Context, channelID, messageID string) (Message, error)
	// ResolveEmoji maps a custom emoji name to the token that displays it
	ResolveEmoji(ctx context.Context, guildID, name string) (token string, ok bool, err error)
}

// EmojiRefresher is implemented by transports that cache emoji lists
type EmojiRefresher interface {
	RefreshEmojis(ctx context.Context, guildID string) error
}

// Runner is a transport that delivers user messages until ctx is done
type Runner interface {
	Transport
	Run(ctx context.Context, handler Handler) error
}
