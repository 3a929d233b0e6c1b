package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
)

const (
	// ProcessedDir and FailedDir are created under the inbox.
	ProcessedDir = "processed"
	FailedDir    = "failed"

	defaultSettle = 500 * time.Millisecond
)

// Handler processes one script file.
type Handler func(ctx context.Context, path string) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a new file must be quiet before it is handled.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logging.NewComponentLogger(logger, "watcher") }
}

// Watcher monitors an inbox directory.
type Watcher struct {
	dir         string
	handler     Handler
	logger      *slog.Logger
	concurrency int
	settle      time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	active  map[string]bool
	sem     chan struct{}
	wg      sync.WaitGroup
}

// New builds a watcher. Concurrency below one is treated as one.
func New(dir string, handler Handler, concurrency int, opts ...Option) *Watcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	w := &Watcher{
		dir:         dir,
		handler:     handler,
		logger:      logging.NewNop(),
		concurrency: concurrency,
		settle:      defaultSettle,
		pending:     make(map[string]*time.Timer),
		active:      make(map[string]bool),
		sem:         make(chan struct{}, concurrency),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is canceled, then waits for in-flight scripts.
func (w *Watcher) Run(ctx context.Context) error {
	if w.handler == nil {
		return errors.New("watcher handler is nil")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("ensure inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info("watching inbox",
		logging.String("dir", w.dir),
		logging.Int("concurrency", w.concurrency),
	)
	if err := w.scanBacklog(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.wg.Wait()
			w.logger.Info("watcher stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if IsScript(event.Name) {
					w.schedule(ctx, event.Name)
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "watcher error", "watcher_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "inbox events may be missed"),
			)
		}
	}
}

// IsScript reports whether path names a script file.
func IsScript(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".txt")
}

func (w *Watcher) scanBacklog(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsScript(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.schedule(ctx, filepath.Join(w.dir, name))
	}
	return nil
}

// schedule debounces events for path; the file is handled once it has been
// quiet for the settle duration.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active[path] {
		return
	}
	if timer, ok := w.pending[path]; ok {
		if timer.Stop() {
			timer.Reset(w.settle)
		}
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() { w.dispatch(ctx, path) })
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	defer w.wg.Done()
	w.mu.Lock()
	delete(w.pending, path)
	w.active[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.active, path)
		w.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.sem }()

	if _, err := os.Stat(path); err != nil {
		return
	}
	w.process(ctx, path)
}

func (w *Watcher) process(ctx context.Context, path string) {
	logger := w.logger.With(logging.String("script", filepath.Base(path)))
	logger.Info("script detected")
	started := time.Now()

	err := w.handler(ctx, path)
	if ctx.Err() != nil {
		logger.Info("script interrupted; left in inbox")
		return
	}
	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		logging.ErrorWithContext(logger, "script failed", "script_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "script moved to "+FailedDir),
		)
	} else {
		logger.Info("script processed", logging.Duration("elapsed", time.Since(started)))
	}
	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if err := fileutil.MoveFile(path, target); err != nil {
		logging.WarnWithContext(logger, "move script failed", "script_move_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "script may be processed again"),
		)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			delete(w.pending, path)
			w.wg.Done()
		}
	}
}
