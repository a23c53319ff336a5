package planfile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// WatchTarget is a Target that plans can also be removed from
	WatchTarget interface {
		Target
		DeletePlan(context.Context, api.PlanID) error
	}

	// Watcher re-applies plan files as they change. Removing a file
	// deletes the plan it defined
	Watcher struct {
		target   WatchTarget
		fsw      *fsnotify.Watcher
		applied  map[string]api.PlanID
		pending  map[string]fsnotify.Op
		dir      string
		debounce time.Duration
		done     chan struct{}
		started  bool
		mu       sync.Mutex
	}

	// WatchOption configures a Watcher
	WatchOption func(*Watcher)
)

// DefaultDebounce is how long a file must be quiet before it is applied
const DefaultDebounce = 250 * time.Millisecond

// WithDebounce sets how long changes are collected before being applied
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a Watcher over dir. Nothing is applied until Start
func NewWatcher(
	t WatchTarget, dir string, opts ...WatchOption,
) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		target:   t,
		fsw:      fsw,
		applied:  map[string]api.PlanID{},
		pending:  map[string]fsnotify.Op{},
		dir:      dir,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start applies every existing plan file, then watches dir and its
// subdirectories until ctx ends or Stop is called
func (w *Watcher) Start(ctx context.Context) (*Result, error) {
	if err := w.addWatches(w.dir); err != nil {
		return nil, err
	}

	paths, err := Glob(w.dir)
	if err != nil {
		return nil, err
	}
	res := &Result{Failed: map[string]error{}}
	for _, path := range paths {
		w.apply(ctx, path, res)
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	slog.Info("Plan file watcher started",
		slog.String("dir", w.dir),
		slog.Int("plans", len(res.Created)+len(res.Updated)))
	return res, nil
}

// Stop ends watching. Plans already applied are left in place
func (w *Watcher) Stop() error {
	err := w.fsw.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.fsw.Close()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.track(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Plan file watch error", log.Error(err))

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) track(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return w.trackDir(ev.Name)
		}
	}
	if !IsPlanFile(ev.Name) || ev.Op == fsnotify.Chmod {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.Name] |= ev.Op
	return true
}

// trackDir watches a new directory and queues any plan files that were
// written into it before the watch was in place
func (w *Watcher) trackDir(dir string) bool {
	if err := w.addWatches(dir); err != nil {
		slog.Warn("Plan file watch failed",
			slog.String("dir", dir),
			log.Error(err))
		return false
	}
	paths, err := Glob(dir)
	if err != nil || len(paths) == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range paths {
		w.pending[path] |= fsnotify.Create
	}
	return true
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	pending := w.pending
	w.pending = map[string]fsnotify.Op{}
	w.mu.Unlock()

	res := &Result{Failed: map[string]error{}}
	for path := range pending {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			w.remove(ctx, path)
			continue
		}
		w.apply(ctx, path, res)
	}
}

func (w *Watcher) apply(ctx context.Context, path string, res *Result) {
	plan, created, err := Apply(ctx, w.target, path)
	if err != nil {
		res.Failed[path] = err
		slog.Warn("Plan file rejected",
			slog.String("path", path),
			log.Error(err))
		return
	}

	w.mu.Lock()
	w.applied[path] = plan.ID
	w.mu.Unlock()

	if created {
		res.Created = append(res.Created, plan.ID)
	} else {
		res.Updated = append(res.Updated, plan.ID)
	}
	slog.Info("Plan file applied",
		slog.String("path", path),
		log.PlanID(plan.ID),
		slog.Bool("created", created))
}

func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	id, ok := w.applied[path]
	delete(w.applied, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	err := w.target.DeletePlan(ctx, id)
	if err != nil && !errors.Is(err, store.ErrPlanNotFound) {
		slog.Warn("Plan file removal failed",
			slog.String("path", path),
			log.PlanID(id),
			log.Error(err))
		return
	}
	slog.Info("Plan file removed",
		slog.String("path", path),
		log.PlanID(id))
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root,
		func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			return w.fsw.Add(path)
		},
	)
}
