// Package syncq is the CLI's offline queue. Every queued command carries the
// idempotency key it was first attempted with, so replaying a command the
// server already applied is answered from the server's idempotency log.
package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func queuePath() (string, error) {
	dir := strings.TrimSpace(os.Getenv("KMC_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".kmc")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	for _, c := range commands {
		if c.IdempotencyKey == cmd.IdempotencyKey {
			return nil
		}
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Sender delivers one queued command. keep reports whether the command
// should stay queued after err.
type Sender func(ctx context.Context, cmd Command) (keep bool, err error)

type Outcome struct {
	Command Command
	Err     error
}

// Replay sends commands in order and returns what is left to retry plus the
// result of every attempt. Once one command must be kept, the rest are kept
// untried so order is preserved.
func Replay(ctx context.Context, commands []Command, send Sender) ([]Command, []Outcome) {
	remaining := make([]Command, 0, len(commands))
	outcomes := make([]Outcome, 0, len(commands))
	for i, cmd := range commands {
		if ctx.Err() != nil {
			return append(remaining, commands[i:]...), outcomes
		}
		keep, err := send(ctx, cmd)
		outcomes = append(outcomes, Outcome{Command: cmd, Err: err})
		if keep {
			return append(remaining, commands[i:]...), outcomes
		}
	}
	return remaining, outcomes
}
