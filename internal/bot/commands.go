package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/render"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
)

func (b *Bot) registerCommands() {
	b.Register(&Command{
		Name:        "chessboard",
		Usage:       "chessboard",
		Description: "Show the current board in one message",
		Handler:     b.chessboard,
	})
	b.Register(&Command{
		Name:        "emojicheck",
		Usage:       "emojicheck",
		Description: "List the board emojis this server is missing",
		Handler:     b.emojicheck,
	})
	b.Register(&Command{
		Name:        "move",
		Usage:       "move <from> <to>",
		Description: "Play a move, e.g. !move e2 e4 or !move e2e4",
		Handler:     b.move,
	})
	b.Register(&Command{
		Name:        "chesslines",
		Usage:       "chesslines",
		Description: "Post the board one message per rank",
		Handler:     b.chesslines,
	})
	b.Register(&Command{
		Name:        "debug",
		Usage:       "debug",
		Description: "Show the FEN and side to move",
		Handler:     b.debug,
	})
	b.Register(&Command{
		Name:        "showraw",
		Usage:       "showraw",
		Description: "Show the board as emoji names",
		Handler:     b.showraw,
	})
	b.Register(&Command{
		Name:        "newgame",
		Usage:       "newgame",
		Description: "Start a new game in this channel",
		Handler:     b.newgame,
	})
	b.Register(&Command{
		Name:        "help",
		Usage:       "help",
		Description: "Show this list",
		Handler: func(ctx context.Context, in transport.Incoming, _ []string) error {
			_, err := b.tr.Send(ctx, in.ChannelID, b.helpText())
			return err
		},
	})
}

func (b *Bot) chessboard(ctx context.Context, in transport.Incoming, _ []string) error {
	return b.svc.WithSession(ctx, in.ChannelID, in.GuildID, func(sess *game.Session) error {
		text, err := render.Text(sess.Board(), b.resolver(ctx, in.GuildID, b.cfg.EmojiFallback), false)
		if err != nil {
			return err
		}
		_, err = b.tr.Send(ctx, in.ChannelID, text)
		return err
	})
}

func (b *Bot) emojicheck(ctx context.Context, in transport.Incoming, _ []string) error {
	if r, ok := b.tr.(transport.EmojiRefresher); ok {
		if err := r.RefreshEmojis(ctx, in.GuildID); err != nil {
			return err
		}
	}

	text := "All emojis are available!"
	if missing := render.Missing(b.resolver(ctx, in.GuildID, false)); len(missing) > 0 {
		text = "Missing emojis:\n" + strings.Join(missing, ", ")
	}
	_, err := b.tr.Send(ctx, in.ChannelID, text)
	return err
}

// move accepts "e2 e4" and "e2e4"
func parseMoveArgs(args []string) (src, dst string, err error) {
	switch {
	case len(args) == 2:
		return args[0], args[1], nil
	case len(args) == 1 && len(args[0]) == 4:
		return args[0][:2], args[0][2:], nil
	}
	return "", "", fmt.Errorf("usage: move <from> <to>: %w", core.ErrInvalidCoordinate)
}

func (b *Bot) move(ctx context.Context, in transport.Incoming, args []string) error {
	b.deleteCommand(ctx, in)

	src, dst, err := parseMoveArgs(args)
	if err != nil {
		return err
	}

	return b.svc.WithSession(ctx, in.ChannelID, in.GuildID, func(sess *game.Session) error {
		// the engine still owes a reply from an earlier failure
		if sess.EngineTurn() {
			if err := b.engineReply(ctx, in, sess); err != nil {
				return err
			}
			if sess.EngineTurn() {
				return nil
			}
		}

		if _, err := b.svc.PlayerMove(sess, src, dst); err != nil {
			return err
		}
		if err := b.updateBoard(ctx, in, sess); err != nil {
			return err
		}
		return b.engineReply(ctx, in, sess)
	})
}

// engineReply lets the engine move if it is its turn and shows the result
func (b *Bot) engineReply(ctx context.Context, in transport.Incoming, sess *game.Session) error {
	if !sess.EngineTurn() {
		return nil
	}
	_, played, err := b.svc.EngineReply(ctx, sess)
	if err != nil {
		return err
	}
	if !played {
		_, err = b.tr.Send(ctx, in.ChannelID, "Engine has no move")
		return err
	}
	return b.updateBoard(ctx, in, sess)
}

func (b *Bot) chesslines(ctx context.Context, in transport.Incoming, _ []string) error {
	return b.svc.WithSession(ctx, in.ChannelID, in.GuildID, func(sess *game.Session) error {
		return b.postLines(ctx, in, sess)
	})
}

// postLines replaces any tracked board lines with freshly posted ones
func (b *Bot) postLines(ctx context.Context, in transport.Incoming, sess *game.Session) error {
	lines, err := render.Lines(sess.Board(), b.resolver(ctx, in.GuildID, b.cfg.EmojiFallback), b.cfg.Border)
	if err != nil {
		return err
	}

	for _, old := range sess.Lines() {
		msg := transport.Message{ChannelID: in.ChannelID, ID: old.MessageID}
		if err := b.tr.Delete(ctx, msg); err != nil {
			b.log.Debug("failed to delete old board line", zap.String("message", old.MessageID), zap.Error(err))
		}
	}
	sess.SetLines(nil)

	posted := make([]game.BoardLine, 0, len(lines))
	for _, line := range lines {
		msg, err := b.tr.Send(ctx, in.ChannelID, line)
		if err != nil {
			sess.SetLines(posted)
			return err
		}
		posted = append(posted, game.BoardLine{MessageID: msg.ID, Content: line})
	}
	sess.SetLines(posted)
	return nil
}

// updateBoard edits the posted lines whose content changed. Without posted
// lines, or when one of them was deleted, the board is posted again.
func (b *Bot) updateBoard(ctx context.Context, in transport.Incoming, sess *game.Session) error {
	tracked := sess.Lines()
	lines, err := render.Lines(sess.Board(), b.resolver(ctx, in.GuildID, b.cfg.EmojiFallback), b.cfg.Border)
	if err != nil {
		return err
	}
	if len(tracked) != len(lines) {
		return b.postLines(ctx, in, sess)
	}

	for i, line := range lines {
		if tracked[i].Content == line {
			continue
		}
		msg, err := b.tr.Fetch(ctx, in.ChannelID, tracked[i].MessageID)
		if err == nil {
			_, err = b.tr.Edit(ctx, msg, line)
		}
		if errors.Is(err, transport.ErrMessageNotFound) {
			return b.postLines(ctx, in, sess)
		}
		if err != nil {
			sess.SetLines(tracked)
			return err
		}
		tracked[i].Content = line
	}
	sess.SetLines(tracked)
	return nil
}

func (b *Bot) debug(ctx context.Context, in transport.Incoming, _ []string) error {
	text := "Board not initialized!"
	if snap, err := b.svc.Lookup(in.ChannelID); err == nil {
		text = fmt.Sprintf("```FEN: %s\nTurn: %s```", snap.FEN, snap.Turn)
	}
	_, err := b.tr.Send(ctx, in.ChannelID, text)
	return err
}

func (b *Bot) showraw(ctx context.Context, in transport.Incoming, _ []string) error {
	text := "Board not initialized!"
	if snap, err := b.svc.Lookup(in.ChannelID); err == nil {
		text = "```" + render.Raw(snap.Board) + "```"
	}
	_, err := b.tr.Send(ctx, in.ChannelID, text)
	return err
}

func (b *Bot) newgame(ctx context.Context, in transport.Incoming, _ []string) error {
	b.deleteCommand(ctx, in)

	return b.svc.WithSession(ctx, in.ChannelID, in.GuildID, func(sess *game.Session) error {
		b.svc.NewGame(ctx, sess)
		if err := b.postLines(ctx, in, sess); err != nil {
			return err
		}
		// the engine opens when the human plays black
		return b.engineReply(ctx, in, sess)
	})
}

func (b *Bot) deleteCommand(ctx context.Context, in transport.Incoming) {
	if in.MessageID == "" {
		return
	}
	if err := b.tr.Delete(ctx, in.Message()); err != nil {
		b.log.Debug("failed to delete command message", zap.String("message", in.MessageID), zap.Error(err))
	}
}
