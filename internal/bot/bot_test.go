package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/service"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
)

// fakeChat is an in-memory chat platform
type fakeChat struct {
	mu        sync.Mutex
	next      int
	messages  map[string]transport.Message
	sent      []string
	edits     int
	deletes   int
	fetches   int
	missing   map[string]bool
	refreshed int
}

func newFakeChat() *fakeChat {
	return &fakeChat{messages: make(map[string]transport.Message), missing: make(map[string]bool)}
}

func (f *fakeChat) Send(_ context.Context, channelID, text string) (transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	msg := transport.Message{ChannelID: channelID, ID: fmt.Sprint(f.next), Content: text}
	f.messages[msg.ID] = msg
	f.sent = append(f.sent, text)
	return msg, nil
}

func (f *fakeChat) Edit(_ context.Context, msg transport.Message, text string) (transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[msg.ID]; !ok {
		return transport.Message{}, transport.ErrMessageNotFound
	}
	msg.Content = text
	f.messages[msg.ID] = msg
	f.edits++
	return msg, nil
}

func (f *fakeChat) Delete(_ context.Context, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if _, ok := f.messages[msg.ID]; !ok {
		return transport.ErrMessageNotFound
	}
	delete(f.messages, msg.ID)
	return nil
}

func (f *fakeChat) Fetch(_ context.Context, channelID, messageID string) (transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	msg, ok := f.messages[messageID]
	if !ok {
		return transport.Message{}, transport.ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeChat) ResolveEmoji(_ context.Context, _, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", false, nil
	}
	return "<:" + name + ":1>", true, nil
}

func (f *fakeChat) RefreshEmojis(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

func (f *fakeChat) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeChat) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type stubEngine struct {
	moves []string
	err   error
}

func (e *stubEngine) BestMove(context.Context, string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if len(e.moves) == 0 {
		return "", nil
	}
	m := e.moves[0]
	e.moves = e.moves[1:]
	return m, nil
}

func setup(t *testing.T, eng service.Engine, human core.Color) (*Bot, *fakeChat, *service.Service) {
	t.Helper()
	svc := service.New(eng, nil, service.Config{HumanColor: human, EngineTimeout: time.Second}, zap.NewNop())
	chat := newFakeChat()
	b := New(svc, chat, Config{Prefix: "!", Border: true}, zap.NewNop())
	return b, chat, svc
}

// say posts a user message to the fake chat and hands it to the bot
func say(b *Bot, chat *fakeChat, text string) {
	msg, _ := chat.Send(context.Background(), "chan", text)
	b.Handle(context.Background(), transport.Incoming{ChannelID: "chan", GuildID: "guild", MessageID: msg.ID, AuthorID: "u1", Content: text})
}

func TestIgnoresOtherMessages(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{}, core.ColorWhite)
	say(b, chat, "hello")
	say(b, chat, "!")
	say(b, chat, "!unknown")
	assert.Len(t, chat.sent, 3, "only the user's own messages")
	assert.Zero(t, svc.Count())
}

func TestDebugBeforeAndAfterInit(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)

	say(b, chat, "!debug")
	assert.Equal(t, "Board not initialized!", chat.last())

	say(b, chat, "!chesslines")
	say(b, chat, "!debug")
	assert.Equal(t, "```FEN: "+board.StartingFEN+"\nTurn: w```", chat.last())
}

func TestChesslinesPostsNineLines(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{}, core.ColorWhite)

	say(b, chat, "!chesslines")
	require.Len(t, chat.sent, 10)
	assert.True(t, strings.HasPrefix(chat.sent[1], "8️⃣<:brwbg:1>"), chat.sent[1])
	assert.True(t, strings.HasPrefix(chat.sent[9], "⬛🇦"), chat.sent[9])

	// posting again replaces the old lines
	say(b, chat, "!chesslines")
	assert.Equal(t, 9+2, chat.live(), "nine board lines plus two command messages")

	snap, err := svc.Lookup("chan")
	require.NoError(t, err)
	assert.Equal(t, board.StartingFEN, snap.FEN)
}

func TestMoveEditsChangedLines(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{moves: []string{"e7e5"}}, core.ColorWhite)

	say(b, chat, "!chesslines")
	sentBefore := len(chat.sent)

	say(b, chat, "!move e2 e4")

	// the command message is deleted, nothing new but the command is posted
	assert.Len(t, chat.sent, sentBefore+1)
	// e2e4 touches ranks 2 and 4; e7e5 touches ranks 7 and 5
	assert.Equal(t, 4, chat.edits)
	assert.Equal(t, 4, chat.fetches)

	snap, _ := svc.Lookup("chan")
	assert.Equal(t, []string{"e2e4", "e7e5"}, snap.Moves)
	assert.Equal(t, core.ColorWhite, snap.Turn)
}

func TestMoveCompactForm(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{moves: []string{"e7e5"}}, core.ColorWhite)
	say(b, chat, "!move e2e4")
	snap, err := svc.Lookup("chan")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e4", "e7e5"}, snap.Moves)
	// no lines were tracked, so the board got posted
	assert.Equal(t, 9, chat.live())
}

func TestMoveErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"!move e7 e5", "🚫 Error: not your turn (white's move)"},
		{"!move e3 e4", "🚫 Error: no piece at e3"},
		{"!move z9 e4", "🚫 Error: "},
		{"!move e2", "🚫 Error: usage: move <from> <to>"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b, chat, svc := setup(t, &stubEngine{}, core.ColorWhite)
			say(b, chat, tt.input)
			assert.True(t, strings.HasPrefix(chat.last(), tt.want), chat.last())

			if snap, err := svc.Lookup("chan"); err == nil {
				assert.Equal(t, board.StartingFEN, snap.FEN)
			}
		})
	}
}

func TestErrorMessageIsDeleted(t *testing.T) {
	svc := service.New(&stubEngine{}, nil, service.Config{}, nil)
	chat := newFakeChat()
	b := New(svc, chat, Config{ErrorTTL: 10 * time.Millisecond}, nil)

	say(b, chat, "!move e7 e5")
	require.Equal(t, 1, chat.live(), "command deleted, error posted")
	b.Wait()
	assert.Zero(t, chat.live())
}

func TestEngineUnavailable(t *testing.T) {
	eng := &stubEngine{err: errors.New("engine crashed")}
	b, chat, svc := setup(t, eng, core.ColorWhite)

	say(b, chat, "!move e2 e4")
	assert.Contains(t, chat.last(), "🚫 Error: ")
	assert.Contains(t, chat.last(), core.ErrEngineUnavailable.Error())

	snap, _ := svc.Lookup("chan")
	assert.Equal(t, core.ColorBlack, snap.Turn)

	// the next command lets the engine catch up first
	eng.err = nil
	eng.moves = []string{"e7e5"}
	say(b, chat, "!move d2 d4")
	snap, _ = svc.Lookup("chan")
	assert.Equal(t, []string{"e2e4", "e7e5", "d2d4"}, snap.Moves)
}

func TestEngineHasNoMove(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)
	say(b, chat, "!move e2 e4")
	assert.Equal(t, "Engine has no move", chat.last())
}

func TestNewGame(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{moves: []string{"e7e5"}}, core.ColorWhite)
	say(b, chat, "!move e2 e4")
	before, _ := svc.Lookup("chan")

	say(b, chat, "!newgame")
	after, _ := svc.Lookup("chan")
	assert.NotEqual(t, before.GameID, after.GameID)
	assert.Equal(t, board.StartingFEN, after.FEN)
	assert.Equal(t, 9, chat.live(), "old lines and both commands deleted")
}

func TestNewGameEngineOpensForBlack(t *testing.T) {
	b, chat, svc := setup(t, &stubEngine{moves: []string{"e2e4"}}, core.ColorBlack)
	say(b, chat, "!newgame")
	snap, _ := svc.Lookup("chan")
	assert.Equal(t, []string{"e2e4"}, snap.Moves)
	assert.Equal(t, core.ColorBlack, snap.Turn)
}

func TestEmojicheck(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)
	say(b, chat, "!emojicheck")
	assert.Equal(t, "All emojis are available!", chat.last())
	assert.Equal(t, 1, chat.refreshed)

	chat.missing["bkwbg"] = true
	chat.missing["wbg"] = true
	say(b, chat, "!emojicheck")
	assert.Equal(t, "Missing emojis:\nbkwbg, wbg", chat.last())
}

func TestChessboardMissingEmoji(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)
	chat.missing["wbg"] = true

	say(b, chat, "!chessboard")
	assert.Contains(t, chat.last(), "Missing emojis? Use !emojicheck")

	b.cfg.EmojiFallback = true
	say(b, chat, "!chessboard")
	lines := strings.Split(chat.last(), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[2], "⬜")
}

func TestShowraw(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)
	say(b, chat, "!showraw")
	assert.Equal(t, "Board not initialized!", chat.last())

	say(b, chat, "!chessboard")
	say(b, chat, "!showraw")
	assert.True(t, strings.HasPrefix(chat.last(), "```Current Board:\n[brwbg,"), chat.last())
}

func TestHelp(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{}, core.ColorWhite)
	say(b, chat, "!help")
	for _, name := range []string{"chessboard", "emojicheck", "move <from> <to>", "chesslines", "debug", "showraw", "newgame"} {
		assert.Contains(t, chat.last(), "!"+name)
	}
}

func TestRepostsWhenLineDeleted(t *testing.T) {
	b, chat, _ := setup(t, &stubEngine{moves: []string{"e7e5"}}, core.ColorWhite)
	say(b, chat, "!chesslines")

	// someone deletes the rank 2 line
	chat.mu.Lock()
	for id, msg := range chat.messages {
		if strings.HasPrefix(msg.Content, "2️⃣") {
			delete(chat.messages, id)
		}
	}
	chat.mu.Unlock()

	say(b, chat, "!move e2 e4")
	assert.Equal(t, 9+1, chat.live(), "board reposted, chesslines command left")
}
