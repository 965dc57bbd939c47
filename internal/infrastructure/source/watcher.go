package source

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc rebuilds the knowledge snapshot. A returned error is logged; the
// caller is expected to keep its previous snapshot.
type ReloadFunc func(ctx context.Context) error

// Watcher triggers a debounced reload when the knowledge documents of a
// FileSource change. It watches the directory rather than the files so that
// editors that replace files by rename are still observed.
type Watcher struct {
	dir      string
	names    map[string]struct{}
	reload   ReloadFunc
	debounce time.Duration
	logger   logging.Logger

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
}

// NewWatcher watches the two documents of src.
func NewWatcher(src *FileSource, reload ReloadFunc, debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(src.Dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		dir: src.Dir,
		names: map[string]struct{}{
			src.ProfilesName: {},
			src.CatalogName:  {},
		},
		reload:   reload,
		debounce: debounce,
		logger:   logger.Named("watcher"),
		fsw:      fsw,
	}, nil
}

// Run processes file events until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("knowledge file changed",
				logging.String("file", ev.Name), logging.String("op", ev.Op.String()))
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))

		case <-timer.C:
			pending = false
			if err := w.reload(ctx); err != nil {
				w.logger.Warn("knowledge reload rejected, keeping previous snapshot",
					logging.String("dir", w.dir), logging.Err(err))
				continue
			}
			w.logger.Info("knowledge reloaded", logging.String("dir", w.dir))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	_, ok := w.names[filepath.Base(ev.Name)]
	return ok
}

// Stop releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		_ = w.fsw.Close()
	})
}
