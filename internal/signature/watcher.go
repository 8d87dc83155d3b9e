package signature

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"netinspect/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads a Store when its backing file changes. Running sessions
// are unaffected: the new rules apply from the next Snapshot.
type Watcher struct {
	store    *Store
	onReload func(n int, err error)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWatcher creates a watcher for store. onReload may be nil.
func NewWatcher(store *Store, onReload func(n int, err error)) *Watcher {
	return &Watcher{
		store:    store,
		onReload: onReload,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins watching the directory holding the signature file. Editors
// often replace files by rename, so the directory is watched rather than
// the file itself.
func (w *Watcher) Start(ctx context.Context) error {
	if w.store.Path() == "" {
		return fmt.Errorf("signature store has no backing file")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.store.Path())); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop(ctx)
	log.L().WithField("path", w.store.Path()).Info("signature watcher started")
	return nil
}

// Stop shuts down the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}
	if w.watcher != nil {
		w.watcher.Close()
		<-w.done
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var debounce *time.Timer
	stopTimer := func() {
		if debounce != nil {
			debounce.Stop()
		}
	}
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				stopTimer()
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			stopTimer()
			debounce = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				stopTimer()
				return
			}
			log.L().WithError(err).Warn("signature watcher error")

		case <-ctx.Done():
			stopTimer()
			return

		case <-w.stopCh:
			stopTimer()
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.store.Reload()
	n := len(w.store.Snapshot())
	if err != nil {
		log.L().WithError(err).Error("signature reload failed, using built-in defaults")
	} else {
		log.L().WithField("signatures", n).Info("signatures reloaded")
	}
	if w.onReload != nil {
		w.onReload(n, err)
	}
}
