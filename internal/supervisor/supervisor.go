package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"termwatch/internal/gateway"
	"termwatch/internal/logging"
	"termwatch/internal/registry"
	"termwatch/internal/terminal"

	"github.com/google/uuid"
)

const (
	DefaultAttemptBackoff   = 5 * time.Second
	DefaultReconnectBackoff = 5 * time.Second

	// connectAttempts bounds one pass of the inner connect procedure. The
	// outer loop retries forever anyway, so the ceiling has no observable
	// effect on cadence; it is kept because the gateway fleet has always
	// run this way. Do not change without confirming against production.
	connectAttempts = 3
)

// Transport is the blocking event-stream connection the supervisor drives.
// Connect must not return while the connection is healthy.
type Transport interface {
	Connect(ctx context.Context, handlers gateway.Handlers) error
	MaskedURL() string
}

// Tracker is the registry surface the supervisor needs.
type Tracker interface {
	Add(identity terminal.Identity)
	Remove(identity terminal.Identity)
	Snapshot() registry.Snapshot
}

type Options struct {
	AttemptBackoff   time.Duration
	ReconnectBackoff time.Duration
}

func (options Options) withDefaults() Options {
	if options.AttemptBackoff <= 0 {
		options.AttemptBackoff = DefaultAttemptBackoff
	}
	if options.ReconnectBackoff <= 0 {
		options.ReconnectBackoff = DefaultReconnectBackoff
	}
	return options
}

// Supervisor keeps one terminal's gateway connection alive until cancelled.
// It owns the transport exclusively; the shared registry is its only
// externally visible state.
type Supervisor struct {
	identity  terminal.Identity
	transport Transport
	tracker   Tracker
	logger    *logging.Logger
	options   Options
	state     stateCell
}

func New(identity terminal.Identity, transport Transport, tracker Tracker, logger *logging.Logger, options Options) *Supervisor {
	return &Supervisor{
		identity:  identity,
		transport: transport,
		tracker:   tracker,
		logger:    logger.WithPrefix(identity.LogPrefix()),
		options:   options.withDefaults(),
	}
}

func (supervisor *Supervisor) Identity() terminal.Identity {
	return supervisor.identity
}

func (supervisor *Supervisor) State() State {
	return supervisor.state.get()
}

// Run loops forever: one bounded connect pass, a fixed reconnect backoff,
// repeat. It returns ctx.Err() on cancellation and nothing else.
func (supervisor *Supervisor) Run(ctx context.Context) error {
	defer supervisor.state.set(StateShuttingDown)

	for {
		supervisor.connectBounded(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		supervisor.logger.Info("reconnecting", map[string]string{
			"backoff": supervisor.options.ReconnectBackoff.String(),
		})
		if err := sleepContext(ctx, supervisor.options.ReconnectBackoff); err != nil {
			return err
		}
	}
}

// connectBounded makes up to connectAttempts establishment attempts. A
// connection that establishes and later drops ends the pass; only a failure
// to establish consumes further attempts. Exhausting every attempt is not an
// error here, control just falls back to the outer loop.
func (supervisor *Supervisor) connectBounded(ctx context.Context) {
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		supervisor.state.set(StateConnecting)
		supervisor.logger.Info("connecting", map[string]string{
			"url":     supervisor.transport.MaskedURL(),
			"attempt": strconv.Itoa(attempt),
		})

		established := false
		sessionID := uuid.NewString()
		sessionLogger := supervisor.logger.With(map[string]string{"session_id": sessionID})

		err := supervisor.transport.Connect(ctx, gateway.Handlers{
			OnConnect: func() {
				established = true
				sessionLogger.Info("connected to server", nil)
				supervisor.tracker.Add(supervisor.identity)
				// The registry entry exists before Connected is visible.
				supervisor.state.set(StateConnected)
			},
			OnDisconnect: func() {
				supervisor.state.set(StateDisconnected)
				sessionLogger.Info("disconnected from server", nil)
				supervisor.tracker.Remove(supervisor.identity)
			},
			OnMessage: func(payload []byte) {
				sessionLogger.Info("message received", map[string]string{
					"data": string(payload),
				})
			},
			OnOtherEvent: func(name string, payload []byte) {
				supervisor.logEvent(sessionLogger, name, payload)
			},
		})
		supervisor.state.set(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
		if established {
			// The session ran and dropped; hand the cadence back to
			// the outer loop.
			if err != nil {
				sessionLogger.Warn("connection lost", map[string]string{
					"error": err.Error(),
				})
			}
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			supervisor.logger.Error("connection error", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
		}
		if sleepContext(ctx, supervisor.options.AttemptBackoff) != nil {
			return
		}
	}
}

// logEvent mirrors the gateway's keep-alive markers with the current
// registry membership so drops can be correlated against server pings.
func (supervisor *Supervisor) logEvent(logger *logging.Logger, name string, payload []byte) {
	switch name {
	case "ping", "pong":
		snapshot := supervisor.tracker.Snapshot()
		logger.Info("keep-alive", map[string]string{
			"event":   name,
			"total":   strconv.Itoa(snapshot.Count),
			"members": fmt.Sprintf("%v", snapshot.Members),
		})
	default:
		logger.Info("event received", map[string]string{
			"event": name,
			"data":  string(payload),
		})
	}
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
