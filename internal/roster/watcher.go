package roster

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"termwatch/internal/logging"
	"termwatch/internal/terminal"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the roster when its file changes and hands the fresh
// identity list to the onReload callback. Editor-style replace-by-rename is
// handled by watching the containing directory. A rewrite that fails to load
// is logged and the previous roster stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger
	onReload func([]terminal.Identity)

	source    *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once

	mutex sync.Mutex
	timer *time.Timer
}

func NewWatcher(path string, debounce time.Duration, logger *logging.Logger, onReload func([]terminal.Identity)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := source.Add(filepath.Dir(path)); err != nil {
		source.Close()
		return nil, err
	}

	watcher := &Watcher{
		path:     path,
		debounce: debounce,
		logger:   logger,
		onReload: onReload,
		source:   source,
		done:     make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}
	var err error
	watcher.closeOnce.Do(func() {
		close(watcher.done)
		err = watcher.source.Close()
		watcher.mutex.Lock()
		if watcher.timer != nil {
			watcher.timer.Stop()
			watcher.timer = nil
		}
		watcher.mutex.Unlock()
	})
	return err
}

func (watcher *Watcher) run() {
	for {
		select {
		case <-watcher.done:
			return
		case event, ok := <-watcher.source.Events:
			if !ok {
				return
			}
			watcher.handleEvent(event)
		case err, ok := <-watcher.source.Errors:
			if !ok {
				return
			}
			if watcher.logger != nil {
				watcher.logger.Warn("roster watch error", map[string]string{
					"error": err.Error(),
				})
			}
		}
	}
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(watcher.path) {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.timer == nil {
		watcher.timer = time.AfterFunc(watcher.debounce, watcher.reload)
		return
	}
	watcher.timer.Reset(watcher.debounce)
}

func (watcher *Watcher) reload() {
	select {
	case <-watcher.done:
		return
	default:
	}

	watcher.mutex.Lock()
	watcher.timer = nil
	watcher.mutex.Unlock()

	identities, err := Load(watcher.path)
	if err != nil {
		if watcher.logger != nil {
			watcher.logger.Warn("roster reload failed; keeping previous roster", map[string]string{
				"path":  watcher.path,
				"error": err.Error(),
			})
		}
		return
	}
	if watcher.logger != nil {
		watcher.logger.Info("roster reloaded", map[string]string{
			"path":  watcher.path,
			"count": strconv.Itoa(len(identities)),
		})
	}
	if watcher.onReload != nil {
		watcher.onReload(identities)
	}
}
