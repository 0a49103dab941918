package pool

import (
	"context"

	"termwatch/internal/gateway"
	"termwatch/internal/logging"
	"termwatch/internal/supervisor"
	"termwatch/internal/terminal"
)

// Runner runs one terminal's connection lifecycle until cancelled. The pool
// treats it as opaque; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, identity terminal.Identity) error
}

// GatewayRunner wires a websocket client and a supervisor per terminal.
type GatewayRunner struct {
	endpoint    gateway.Endpoint
	credentials terminal.Credentials
	tracker     supervisor.Tracker
	logger      *logging.Logger
	options     supervisor.Options
}

func NewGatewayRunner(endpoint gateway.Endpoint, credentials terminal.Credentials, tracker supervisor.Tracker, logger *logging.Logger, options supervisor.Options) *GatewayRunner {
	return &GatewayRunner{
		endpoint:    endpoint,
		credentials: credentials,
		tracker:     tracker,
		logger:      logger,
		options:     options,
	}
}

func (runner *GatewayRunner) Run(ctx context.Context, identity terminal.Identity) error {
	client := gateway.NewClient(runner.endpoint, identity, runner.credentials,
		runner.logger.WithPrefix(identity.LogPrefix()))
	return supervisor.New(identity, client, runner.tracker, runner.logger, runner.options).Run(ctx)
}
