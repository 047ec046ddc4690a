package sim

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"rosterd/internal/config"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// ConfigWatcher reloads a configuration file whenever it is written and
// delivers the result on Changes. Invalid files are reported on Errors and
// leave the last good configuration in place.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	Changes chan *config.Config
	Errors  chan error
}

// NewConfigWatcher watches the directory of path, so editors that replace the
// file by rename are followed too.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{
		watcher: watcher,
		path:    abs,
		Changes: make(chan *config.Config, 1),
		Errors:  make(chan error, 1),
	}, nil
}

// Run forwards reloads until ctx is done. It closes the watcher on return.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer cw.watcher.Close()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			debounce.Reset(watchDebounce)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.report(ctx, err)
		case <-debounce.C:
			cfg, err := config.Load(cw.path)
			if err != nil {
				cw.report(ctx, err)
				continue
			}
			select {
			case cw.Changes <- cfg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (cw *ConfigWatcher) report(ctx context.Context, err error) {
	select {
	case cw.Errors <- err:
	case <-ctx.Done():
	}
}
