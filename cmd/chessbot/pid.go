package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// managePIDFile writes the bot's PID to path, optionally holding an exclusive
// flock so a second bot on the same token refuses to start. The returned
// cleanup releases the lock and removes the file.
func managePIDFile(path string, lock bool) (func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("cannot create PID file: %w", err)
		}
		if lock {
			if err := checkStalePID(path); err != nil {
				return nil, err
			}
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open PID file: %w", err)
		}
	}

	if lock {
		if err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			file.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, errors.New("cannot acquire lock: another bot instance is running")
			}
			return nil, fmt.Errorf("lock failed: %w", err)
		}
	}

	if _, err = fmt.Fprintf(file, "%d\n", os.Getpid()); err == nil {
		err = file.Sync()
	}
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot write PID: %w", err)
	}

	return func() {
		if lock {
			syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		}
		file.Close()
		os.Remove(path)
	}, nil
}

// checkStalePID fails unless the PID in path belongs to a dead process
func checkStalePID(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read existing PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("corrupted PID file (contains: %q)", data)
	}

	// never errors on Unix
	proc, _ := os.FindProcess(pid)
	if err = proc.Signal(syscall.Signal(0)); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			// defunct owner, safe to take over
			return nil
		}
		return fmt.Errorf("process %d exists but cannot verify ownership: %v", pid, err)
	}
	return fmt.Errorf("PID file %s: process %d is running", path, pid)
}
