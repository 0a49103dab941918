package pool

import (
	"context"
	"fmt"
	"time"

	"termwatch/internal/logging"
	"termwatch/internal/registry"
)

// DefaultReportInterval straddles the gateway's keep-alive period so status
// lines land between server pings.
const DefaultReportInterval = 25 * time.Second

// Reporter periodically logs which terminals hold a live connection.
type Reporter struct {
	registry *registry.Registry
	logger   *logging.Logger
	interval time.Duration
}

func NewReporter(reg *registry.Registry, logger *logging.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{
		registry: reg,
		logger:   logger,
		interval: interval,
	}
}

// Run emits one status line per interval until cancelled. Cancellation during
// the wait aborts without a final snapshot.
func (reporter *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(reporter.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reporter.report()
		}
	}
}

func (reporter *Reporter) report() {
	if reporter.logger == nil {
		return
	}
	snapshot := reporter.registry.Snapshot()
	if snapshot.Count == 0 {
		reporter.logger.Info("no terminals connected", nil)
		return
	}
	reporter.logger.Info(fmt.Sprintf("%d terminals connected", snapshot.Count), map[string]string{
		"members": fmt.Sprintf("%v", snapshot.Members),
	})
}
