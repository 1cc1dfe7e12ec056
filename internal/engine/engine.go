package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPath        = "stockfish"
	defaultInitTimeout = 5 * time.Second
	stopGrace          = time.Second
	quitGrace          = time.Second
)

// ErrClosed is returned once the engine process has gone away
var ErrClosed = errors.New("engine closed unexpectedly")

// Options configures a UCI engine process
type Options struct {
	Path string
	// Depth limits the search; MoveTime is used when Depth is 0
	Depth           int
	MoveTime        time.Duration
	Threads         int
	Hash            int
	SkillLevel      int
	MinThinkingTime int
	// Extra are passed verbatim as setoption commands
	Extra       map[string]string
	InitTimeout time.Duration
}

// UCI drives one engine process over stdin/stdout
type UCI struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	mu     sync.Mutex
	opts   Options
	broken atomic.Bool
	log    *zap.Logger
}

// New starts the engine and completes the uci/isready handshake
func New(ctx context.Context, opts Options, logger *zap.Logger) (*UCI, error) {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = defaultInitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(opts.Path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %q: %w", opts.Path, err)
	}

	u := &UCI{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 64),
		opts:  opts,
		log:   logger.With(zap.String("path", opts.Path), zap.Int("pid", cmd.Process.Pid)),
	}
	go u.pump(stdout)

	initCtx, cancel := context.WithTimeout(ctx, opts.InitTimeout)
	defer cancel()

	if err := u.initialize(initCtx); err != nil {
		u.Close()
		return nil, err
	}

	u.log.Debug("engine ready")
	return u, nil
}

// pump forwards engine output line by line until the pipe closes
func (u *UCI) pump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		u.lines <- scanner.Text()
	}
	close(u.lines)
}

func (u *UCI) initialize(ctx context.Context) error {
	if err := u.send("uci"); err != nil {
		return err
	}
	if _, err := u.waitFor(ctx, "uciok"); err != nil {
		return fmt.Errorf("waiting for uciok: %w", err)
	}

	if u.opts.Threads > 0 {
		u.setOption("Threads", strconv.Itoa(u.opts.Threads))
	}
	if u.opts.Hash > 0 {
		u.setOption("Hash", strconv.Itoa(u.opts.Hash))
	}
	if u.opts.MinThinkingTime > 0 {
		u.setOption("Minimum Thinking Time", strconv.Itoa(u.opts.MinThinkingTime))
	}
	if u.opts.SkillLevel > 0 {
		u.SetSkillLevel(u.opts.SkillLevel)
	}
	for name, value := range u.opts.Extra {
		u.setOption(name, value)
	}

	return u.waitReady(ctx)
}

func (u *UCI) waitReady(ctx context.Context) error {
	if err := u.send("isready"); err != nil {
		return err
	}
	if _, err := u.waitFor(ctx, "readyok"); err != nil {
		return fmt.Errorf("waiting for readyok: %w", err)
	}
	return nil
}

// waitFor consumes output until a line starting with prefix arrives
func (u *UCI) waitFor(ctx context.Context, prefix string) (string, error) {
	for {
		select {
		case line, ok := <-u.lines:
			if !ok {
				u.broken.Store(true)
				return "", ErrClosed
			}
			if strings.HasPrefix(line, prefix) {
				return line, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (u *UCI) send(cmd string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := fmt.Fprintln(u.stdin, cmd); err != nil {
		u.broken.Store(true)
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

func (u *UCI) setOption(name, value string) {
	u.send(fmt.Sprintf("setoption name %s value %s", name, value))
}

// SetSkillLevel sets the Stockfish skill level (0-20)
func (u *UCI) SetSkillLevel(level int) {
	if level < 0 {
		level = 0
	} else if level > 20 {
		level = 20
	}
	u.setOption("Skill Level", strconv.Itoa(level))
}

// NewGame resets engine-side state between games
func (u *UCI) NewGame(ctx context.Context) error {
	if err := u.send("ucinewgame"); err != nil {
		return err
	}
	return u.waitReady(ctx)
}

// SetPosition loads a FEN position
func (u *UCI) SetPosition(fen string) error {
	if strings.ContainsAny(fen, "\r\n") {
		return fmt.Errorf("position contains a line break")
	}
	return u.send("position fen " + fen)
}

// BestMove searches the loaded position. It returns "" when the engine has no move.
// If ctx expires the search is stopped; an engine that then fails to answer is
// marked unhealthy.
func (u *UCI) BestMove(ctx context.Context) (string, error) {
	goCmd := "go movetime 1000"
	switch {
	case u.opts.Depth > 0:
		goCmd = fmt.Sprintf("go depth %d", u.opts.Depth)
	case u.opts.MoveTime > 0:
		goCmd = fmt.Sprintf("go movetime %d", u.opts.MoveTime.Milliseconds())
	}
	if err := u.send(goCmd); err != nil {
		return "", err
	}

	line, err := u.waitFor(ctx, "bestmove")
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return "", err
		}
		u.log.Warn("search interrupted, stopping engine", zap.Error(err))
		u.send("stop")
		graceCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
		defer cancel()
		if _, stopErr := u.waitFor(graceCtx, "bestmove"); stopErr != nil {
			u.broken.Store(true)
		}
		return "", err
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
		return "", nil
	}
	return fields[1], nil
}

// Healthy reports whether the process can still be used
func (u *UCI) Healthy() bool {
	return !u.broken.Load()
}

func (u *UCI) Close() error {
	u.broken.Store(true)
	u.send("quit")
	u.stdin.Close()

	// Nobody reads engine output anymore
	go func() {
		for range u.lines {
		}
	}()

	// Try graceful shutdown first
	done := make(chan error, 1)
	go func() {
		done <- u.cmd.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(quitGrace):
		// Force kill if doesn't exit gracefully
		return u.cmd.Process.Kill()
	}
}
