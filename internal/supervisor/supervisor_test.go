package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"termwatch/internal/gateway"
	"termwatch/internal/logging"
	"termwatch/internal/registry"
	"termwatch/internal/terminal"
)

type stubTransport struct {
	failBefore int32 // establishment attempts that fail before the first success
	dropAfter  bool  // established sessions drop immediately instead of holding
	attempts   atomic.Int32
	sessions   atomic.Int32
}

func (stub *stubTransport) MaskedURL() string {
	return "wss://gw.test/socket.io/?mid=m1&tid=t1&token=***"
}

func (stub *stubTransport) Connect(ctx context.Context, handlers gateway.Handlers) error {
	attempt := stub.attempts.Add(1)
	if attempt <= stub.failBefore {
		return errors.New("connection refused")
	}
	stub.sessions.Add(1)
	handlers.OnConnect()
	defer handlers.OnDisconnect()
	if stub.dropAfter {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestSupervisor(t *testing.T, transport Transport, tracker Tracker, buffer *logging.LogBuffer) *Supervisor {
	t.Helper()
	identity, err := terminal.NewIdentity("m1", "t1")
	if err != nil {
		t.Fatalf("bad identity: %v", err)
	}
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelDebug, nil)
	return New(identity, transport, tracker, logger, Options{
		AttemptBackoff:   time.Millisecond,
		ReconnectBackoff: time.Millisecond,
	})
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never met")
}

func TestSupervisorConnectsOnThirdAttempt(t *testing.T) {
	transport := &stubTransport{failBefore: 2}
	tracker := registry.New(nil)
	supervisor := newTestSupervisor(t, transport, tracker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, func() bool { return supervisor.State() == StateConnected })

	snapshot := tracker.Snapshot()
	if snapshot.Count != 1 || snapshot.Members[0] != supervisor.Identity() {
		t.Fatalf("expected exactly one registry entry, got %v", snapshot.Members)
	}
	if got := transport.attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tracker.Snapshot().Count != 0 {
		t.Fatalf("registry must be empty after shutdown")
	}
}

func TestSupervisorRetriesForeverWhenTransportAlwaysFails(t *testing.T) {
	transport := &stubTransport{failBefore: 1 << 30}
	tracker := registry.New(nil)
	supervisor := newTestSupervisor(t, transport, tracker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	// More attempts than one bounded pass proves the outer loop resumed.
	waitFor(t, func() bool { return transport.attempts.Load() > 6 })

	if tracker.Snapshot().Count != 0 {
		t.Fatalf("failed connections must not register")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSupervisorReconnectsAfterSessionDrop(t *testing.T) {
	transport := &stubTransport{dropAfter: true}
	tracker := registry.New(nil)
	supervisor := newTestSupervisor(t, transport, tracker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, func() bool { return transport.sessions.Load() >= 3 })

	cancel()
	<-done
	if tracker.Snapshot().Count != 0 {
		t.Fatalf("registry must be empty after shutdown")
	}
}

func TestSupervisorCancellationDuringBackoffUnwindsPromptly(t *testing.T) {
	transport := &stubTransport{failBefore: 1 << 30}
	tracker := registry.New(nil)
	supervisor := newTestSupervisor(t, transport, tracker, nil)
	supervisor.options.AttemptBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, func() bool { return transport.attempts.Load() >= 1 })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not unwind during backoff sleep")
	}
	if supervisor.State() != StateShuttingDown {
		t.Fatalf("expected shutting-down state, got %v", supervisor.State())
	}
}

func TestSupervisorNeverLogsCancellationAsError(t *testing.T) {
	transport := &stubTransport{}
	tracker := registry.New(nil)
	buffer := logging.NewLogBuffer(256)
	supervisor := newTestSupervisor(t, transport, tracker, buffer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, func() bool { return supervisor.State() == StateConnected })
	cancel()
	<-done

	for _, entry := range buffer.List() {
		if entry.Level == logging.LevelError {
			t.Fatalf("cancellation produced an error line: %q %v", entry.Message, entry.Context)
		}
	}
}

func TestSupervisorLogsMaskedURLOnly(t *testing.T) {
	transport := &stubTransport{failBefore: 2}
	tracker := registry.New(nil)
	buffer := logging.NewLogBuffer(256)
	supervisor := newTestSupervisor(t, transport, tracker, buffer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()
	waitFor(t, func() bool { return supervisor.State() == StateConnected })
	cancel()
	<-done

	var sawConnecting bool
	for _, entry := range buffer.List() {
		if url, ok := entry.Context["url"]; ok {
			sawConnecting = true
			if url != transport.MaskedURL() {
				t.Fatalf("unexpected URL in logs: %q", url)
			}
		}
	}
	if !sawConnecting {
		t.Fatalf("expected a connecting line carrying the masked URL")
	}
}

func TestSupervisorPrefixesEveryLine(t *testing.T) {
	transport := &stubTransport{dropAfter: true}
	tracker := registry.New(nil)
	buffer := logging.NewLogBuffer(256)
	supervisor := newTestSupervisor(t, transport, tracker, buffer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()
	waitFor(t, func() bool { return transport.sessions.Load() >= 1 })
	cancel()
	<-done

	entries := buffer.List()
	if len(entries) == 0 {
		t.Fatalf("expected log lines")
	}
	for _, entry := range entries {
		if len(entry.Message) == 0 || entry.Message[0] != '[' {
			t.Fatalf("line missing terminal prefix: %q", entry.Message)
		}
	}
}
