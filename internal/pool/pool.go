package pool

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"termwatch/internal/logging"
	"termwatch/internal/registry"
	"termwatch/internal/terminal"
)

var ErrNoTerminals = errors.New("no terminals to supervise")

type Options struct {
	ReportInterval time.Duration
}

// Pool fans out one supervisor task per terminal plus the status reporter.
// Every task gets its own cancellation token; shutdown cancels each token and
// then collects every task's outcome before Run returns.
type Pool struct {
	runner   Runner
	registry *registry.Registry
	logger   *logging.Logger
	options  Options

	mutex       sync.Mutex
	baseCtx     context.Context
	supervisors map[terminal.Identity]*task
	stopping    bool

	group sync.WaitGroup

	failureMu sync.Mutex
	failures  []error
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func New(runner Runner, reg *registry.Registry, logger *logging.Logger, options Options) *Pool {
	return &Pool{
		runner:      runner,
		registry:    reg,
		logger:      logger,
		options:     options,
		supervisors: make(map[terminal.Identity]*task),
	}
}

// Run starts one supervisor per identity plus the reporter, then blocks until
// ctx is cancelled. It drains every task before returning and reports nil
// when every outcome was a cancellation acknowledgment.
func (pool *Pool) Run(ctx context.Context, identities []terminal.Identity) error {
	if len(identities) == 0 {
		return ErrNoTerminals
	}

	// Task tokens hang off an internal root, not ctx, so the drain phase
	// controls exactly when each task is cancelled.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	pool.mutex.Lock()
	pool.baseCtx = baseCtx
	for _, identity := range identities {
		pool.startSupervisorLocked(identity)
	}
	pool.mutex.Unlock()

	reporter := NewReporter(pool.registry, pool.logger, pool.options.ReportInterval)
	reporterCtx, cancelReporter := context.WithCancel(baseCtx)
	reporterDone := make(chan struct{})
	pool.group.Add(1)
	go func() {
		defer pool.group.Done()
		defer close(reporterDone)
		err := reporter.Run(reporterCtx)
		pool.recordOutcome("reporter", err)
	}()

	pool.logger.Info("supervisor pool started", map[string]string{
		"terminals": strconv.Itoa(len(identities)),
	})

	<-ctx.Done()

	pool.logger.Info("draining supervisor pool", nil)

	pool.mutex.Lock()
	pool.stopping = true
	running := make([]*task, 0, len(pool.supervisors))
	for _, entry := range pool.supervisors {
		running = append(running, entry)
	}
	pool.mutex.Unlock()

	for _, entry := range running {
		entry.cancel()
	}
	cancelReporter()
	// Global phase-2 token: covers any task racing a roster reconcile.
	cancelBase()
	for _, entry := range running {
		<-entry.done
	}
	<-reporterDone
	pool.group.Wait()

	pool.logger.Info("supervisor pool drained", nil)

	pool.failureMu.Lock()
	defer pool.failureMu.Unlock()
	return errors.Join(pool.failures...)
}

// Reconcile aligns running supervisors with a reloaded roster: identities not
// yet supervised are started, supervised identities no longer in the roster
// are cancelled and drained.
func (pool *Pool) Reconcile(identities []terminal.Identity) {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()

	if pool.baseCtx == nil || pool.stopping {
		return
	}

	wanted := make(map[terminal.Identity]struct{}, len(identities))
	for _, identity := range identities {
		wanted[identity] = struct{}{}
		if _, running := pool.supervisors[identity]; !running {
			pool.logger.Info("terminal added to roster", map[string]string{
				"terminal": identity.String(),
			})
			pool.startSupervisorLocked(identity)
		}
	}
	for identity, entry := range pool.supervisors {
		if _, keep := wanted[identity]; keep {
			continue
		}
		pool.logger.Info("terminal removed from roster", map[string]string{
			"terminal": identity.String(),
		})
		entry.cancel()
	}
}

// SupervisedCount reports how many supervisor tasks are currently running.
func (pool *Pool) SupervisedCount() int {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	return len(pool.supervisors)
}

func (pool *Pool) startSupervisorLocked(identity terminal.Identity) {
	taskCtx, cancel := context.WithCancel(pool.baseCtx)
	entry := &task{cancel: cancel, done: make(chan struct{})}
	pool.supervisors[identity] = entry

	pool.group.Add(1)
	go func() {
		defer pool.group.Done()
		err := pool.runner.Run(taskCtx, identity)
		pool.recordOutcome(identity.String(), err)

		pool.mutex.Lock()
		if pool.supervisors[identity] == entry {
			delete(pool.supervisors, identity)
		}
		pool.mutex.Unlock()
		close(entry.done)
	}()
}

// recordOutcome keeps non-cancellation errors for the final report. A task
// failing this way never blocks collection of the others.
func (pool *Pool) recordOutcome(name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	pool.logger.Error("unexpected shutdown failure", map[string]string{
		"task":  name,
		"error": err.Error(),
	})
	pool.failureMu.Lock()
	pool.failures = append(pool.failures, err)
	pool.failureMu.Unlock()
}
