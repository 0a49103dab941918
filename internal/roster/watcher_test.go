package roster

import (
	"os"
	"testing"
	"time"

	"termwatch/internal/logging"
	"termwatch/internal/terminal"
)

func TestWatcherReloadsOnRewrite(t *testing.T) {
	path := writeRoster(t, "mid,tid\nm1,t1\n")

	reloads := make(chan []terminal.Identity, 4)
	watcher, err := NewWatcher(path, 20*time.Millisecond, nil, func(identities []terminal.Identity) {
		reloads <- identities
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(path, []byte("mid,tid\nm1,t1\nm2,t2\n"), 0o644); err != nil {
		t.Fatalf("rewrite roster: %v", err)
	}

	select {
	case identities := <-reloads:
		if len(identities) != 2 {
			t.Fatalf("expected 2 identities after reload, got %v", identities)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reload never fired")
	}
}

func TestWatcherKeepsPreviousRosterOnBadRewrite(t *testing.T) {
	path := writeRoster(t, "mid,tid\nm1,t1\n")

	buffer := logging.NewLogBuffer(16)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelInfo, nil)

	reloads := make(chan []terminal.Identity, 4)
	watcher, err := NewWatcher(path, 20*time.Millisecond, logger, func(identities []terminal.Identity) {
		reloads <- identities
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(path, []byte("mid,tid\n"), 0o644); err != nil {
		t.Fatalf("rewrite roster: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case identities := <-reloads:
			t.Fatalf("reload should not fire for an empty roster, got %v", identities)
		case <-deadline:
			t.Fatalf("warn line never appeared")
		case <-time.After(50 * time.Millisecond):
		}
		for _, entry := range buffer.List() {
			if entry.Level == logging.LevelWarning {
				return
			}
		}
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	path := writeRoster(t, "mid,tid\nm1,t1\n")
	watcher, err := NewWatcher(path, 20*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
