package syncq

import (
	"context"
	"errors"
	"testing"
)

func TestPushDedupesByKey(t *testing.T) {
	t.Setenv("KMC_HOME", t.TempDir())

	cmds, err := Load()
	if err != nil || len(cmds) != 0 {
		t.Fatalf("empty queue = %v err=%v", cmds, err)
	}
	for _, key := range []string{"a", "b", "a"} {
		if err := Push(Command{Method: "POST", Path: "/v1/actions", IdempotencyKey: key, Body: map[string]any{"kind": "deposit"}}); err != nil {
			t.Fatalf("push %s: %v", key, err)
		}
	}
	cmds, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cmds) != 2 || cmds[0].IdempotencyKey != "a" || cmds[1].IdempotencyKey != "b" {
		t.Fatalf("queue = %+v", cmds)
	}
	if cmds[0].QueuedAt.IsZero() {
		t.Fatalf("queued time not set")
	}
	if cmds[0].Body["kind"] != "deposit" {
		t.Fatalf("body lost: %v", cmds[0].Body)
	}
}

func TestReplayKeepsOrder(t *testing.T) {
	cmds := []Command{{IdempotencyKey: "1"}, {IdempotencyKey: "2"}, {IdempotencyKey: "3"}, {IdempotencyKey: "4"}}
	offline := errors.New("connection refused")
	rejected := errors.New("insufficient funds")

	var sent []string
	remaining, outcomes := Replay(context.Background(), cmds, func(_ context.Context, c Command) (bool, error) {
		sent = append(sent, c.IdempotencyKey)
		switch c.IdempotencyKey {
		case "2":
			return false, rejected
		case "3":
			return true, offline
		}
		return false, nil
	})

	if len(sent) != 3 {
		t.Fatalf("sent = %v", sent)
	}
	if len(remaining) != 2 || remaining[0].IdempotencyKey != "3" || remaining[1].IdempotencyKey != "4" {
		t.Fatalf("remaining = %+v", remaining)
	}
	if len(outcomes) != 3 || !errors.Is(outcomes[1].Err, rejected) || outcomes[0].Err != nil {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestReplayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmds := []Command{{IdempotencyKey: "1"}, {IdempotencyKey: "2"}}
	remaining, outcomes := Replay(ctx, cmds, func(context.Context, Command) (bool, error) {
		t.Fatalf("nothing should be sent after cancel")
		return false, nil
	})
	if len(remaining) != 2 || len(outcomes) != 0 {
		t.Fatalf("remaining=%d outcomes=%d", len(remaining), len(outcomes))
	}
}

func TestSaveEmptiesQueue(t *testing.T) {
	t.Setenv("KMC_HOME", t.TempDir())
	if err := Push(Command{IdempotencyKey: "x"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := Save([]Command{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	cmds, err := Load()
	if err != nil || len(cmds) != 0 {
		t.Fatalf("queue = %v err=%v", cmds, err)
	}
}
