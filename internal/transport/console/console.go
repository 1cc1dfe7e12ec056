// Package console plays the bot in a terminal. It keeps messages in memory
// and redraws the channel whenever a message is edited.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/transport"
)

const (
	ChannelID = "console"
	authorID  = "local"
)

// Terminal color codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// Console implements transport.Runner over stdin/stdout
type Console struct {
	in  io.Reader
	out io.Writer

	mu       sync.Mutex
	nextID   int
	messages map[string]transport.Message
	dirty    bool

	color       bool
	historyFile string
}

// New creates a console transport. Interactive terminals get a readline
// prompt with history; other inputs are read line by line.
func New(in io.Reader, out io.Writer, historyFile string) *Console {
	c := &Console{
		in:          in,
		out:         out,
		messages:    make(map[string]transport.Message),
		historyFile: historyFile,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.color = true
	}
	return c
}

// Run reads commands until EOF, "exit" or ctx is done
func (c *Console) Run(ctx context.Context, handler transport.Handler) error {
	next, closeInput, err := c.reader()
	if err != nil {
		return err
	}
	defer closeInput()

	c.printf("%sChess console%s\nType '!help' for commands, 'exit' to quit\n\n", cyan, reset)

	for ctx.Err() == nil {
		line, err := next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		msg := c.store(line)
		handler(ctx, transport.Incoming{
			ChannelID: ChannelID,
			MessageID: msg.ID,
			AuthorID:  authorID,
			Content:   line,
		})
		c.redraw()
	}
	return ctx.Err()
}

func (c *Console) reader() (next func() (string, error), closeInput func(), err error) {
	if c.color {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          yellow + "chessbot" + cyan + " > " + reset,
			HistoryFile:     c.historyFile,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
			Stdout:          c.out,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("starting readline: %w", err)
		}
		return rl.Readline, func() { rl.Close() }, nil
	}

	scanner := bufio.NewScanner(c.in)
	next = func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
	return next, func() {}, nil
}

func (c *Console) printf(format string, args ...any) {
	if !c.color {
		format = strings.NewReplacer(cyan, "", yellow, "", reset, "").Replace(format)
	}
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) store(text string) transport.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg := transport.Message{ChannelID: ChannelID, ID: strconv.Itoa(c.nextID), Content: text}
	c.messages[msg.ID] = msg
	return msg
}

// redraw prints every live bot message when something was edited
func (c *Console) redraw() {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	c.dirty = false

	ids := make([]int, 0, len(c.messages))
	for id := range c.messages {
		n, _ := strconv.Atoi(id)
		ids = append(ids, n)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, n := range ids {
		msg := c.messages[strconv.Itoa(n)]
		if strings.HasPrefix(msg.Content, "!") {
			continue
		}
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	c.mu.Unlock()

	c.printf("%s", "\n"+b.String()+"\n")
}

func (c *Console) Send(_ context.Context, channelID, text string) (transport.Message, error) {
	msg := c.store(text)
	c.printf("%s\n", text)
	return msg, nil
}

func (c *Console) Edit(_ context.Context, msg transport.Message, text string) (transport.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[msg.ID]; !ok {
		return transport.Message{}, fmt.Errorf("message %s: %w", msg.ID, transport.ErrMessageNotFound)
	}
	msg.Content = text
	msg.ChannelID = ChannelID
	c.messages[msg.ID] = msg
	c.dirty = true
	return msg, nil
}

func (c *Console) Delete(_ context.Context, msg transport.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[msg.ID]; !ok {
		return fmt.Errorf("message %s: %w", msg.ID, transport.ErrMessageNotFound)
	}
	delete(c.messages, msg.ID)
	return nil
}

func (c *Console) Fetch(_ context.Context, channelID, messageID string) (transport.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.messages[messageID]
	if !ok {
		return transport.Message{}, fmt.Errorf("message %s: %w", messageID, transport.ErrMessageNotFound)
	}
	return msg, nil
}

// ResolveEmoji never finds custom emojis; the bot falls back to glyphs
func (c *Console) ResolveEmoji(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
