package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/illumination-k/pathmirror/pkg/sync/catalog"
	"github.com/illumination-k/pathmirror/pkg/sync/exclude"
)

// DefaultDebounce is how long the scheduler waits for a burst of triggers to settle
const DefaultDebounce = 300 * time.Millisecond

// Scheduler runs engine passes on a fixed interval and on filesystem changes.
// Triggers are debounced and collapsed so at most one pass runs at a time and at
// most one more is pending.
type Scheduler struct {
	engine   *Engine
	clock    clockwork.Clock
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	watcher  *fsnotify.Watcher
	triggers chan string
	timer    clockwork.Timer
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithSchedulerClock replaces the clock driving the interval and debounce timers
func WithSchedulerClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithDebounce sets the debounce window
func WithDebounce(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithSchedulerLogger sets the scheduler logger
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler creates a stopped scheduler for engine
func NewScheduler(engine *Engine, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		logger:   engine.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether the scheduler is started
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins interval and change-driven passes. It returns once the watcher is
// registered; passes run in the background until Stop or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}

	settings := s.engine.session.Snapshot()
	if len(settings.Paths) < 2 {
		return configErrorf(ErrInsufficientPaths, "%d registered", len(settings.Paths))
	}
	if err := ValidateInterval(settings.Interval); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	builder := catalog.NewBuilder(s.engine.fs, settings.Filter)
	roots := make(map[string]*exclude.Manager)
	for _, path := range settings.Paths {
		if ResolvePathKind(s.engine.fs, path) != KindDirectory {
			continue
		}
		roots[path] = builder.Excludes(path)
		if err := s.addDirRecursive(watcher, builder, path, path); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	s.triggers = make(chan string, 1)
	ticker := s.clock.NewTicker(settings.Interval)

	g.Go(func() error {
		s.runPasses(gctx)
		return nil
	})
	g.Go(func() error {
		s.tick(gctx, ticker)
		return nil
	})
	g.Go(func() error {
		s.watchFiles(gctx, watcher, builder, roots)
		return nil
	})

	s.running = true
	s.cancel = cancel
	s.group = g
	s.watcher = watcher

	s.logger.Info("monitoring started", "paths", len(settings.Paths), "interval", settings.Interval)
	return nil
}

// Stop tears down the ticker, watcher and worker and waits for an in-flight pass
// to return. It is safe to call on a scheduler that was never started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	cancel, group, watcher := s.cancel, s.group, s.watcher
	if s.timer != nil {
		s.timer.Stop()
	}
	s.running = false
	s.cancel, s.group, s.watcher, s.timer = nil, nil, nil, nil
	s.mu.Unlock()

	cancel()
	closeErr := watcher.Close()
	_ = group.Wait()

	s.logger.Info("monitoring stopped")
	if closeErr != nil {
		return fmt.Errorf("failed to close watcher: %w", closeErr)
	}
	return nil
}

// Trigger requests a pass. Calls within the debounce window collapse into one.
func (s *Scheduler) Trigger(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	triggers := s.triggers
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		select {
		case triggers <- reason:
		default:
			// A pass is already pending
		}
	})
}

func (s *Scheduler) runPasses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-s.triggers:
			s.logger.Debug("sync triggered", "reason", reason)
			// Failures are logged and recorded by the engine
			_, _ = s.engine.Run(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Trigger("interval")
		}
	}
}

// addDirRecursive adds dir and its non-excluded subdirectories to watcher.
// dir lies inside the registered directory root.
func (s *Scheduler) addDirRecursive(watcher *fsnotify.Watcher, builder *catalog.Builder, root, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	return builder.WalkSubtree(root, dir, func(rel string, info os.FileInfo) error {
		if !info.IsDir() {
			return nil
		}
		return watcher.Add(filepath.Join(root, rel))
	})
}

// owningRoot returns the registered directory root containing path
func owningRoot(roots map[string]*exclude.Manager, path string) (string, bool) {
	best := ""
	for root := range roots {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

// watchFiles turns change events into triggers
func (s *Scheduler) watchFiles(ctx context.Context, watcher *fsnotify.Watcher, builder *catalog.Builder, roots map[string]*exclude.Manager) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Only handle writes and creates
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), TempFilePrefix) {
				continue
			}

			root, ok := owningRoot(roots, event.Name)
			if !ok {
				continue
			}
			info, err := s.engine.fs.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if !event.Has(fsnotify.Create) {
					continue
				}
				if roots[root].ShouldExcludeDir(event.Name) {
					s.logger.Debug("ignoring excluded directory", "path", event.Name)
					continue
				}
				if err := s.addDirRecursive(watcher, builder, root, event.Name); err != nil {
					s.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			if roots[root].ShouldExclude(event.Name) {
				continue
			}
			if s.engine.WroteLast(event.Name, info.ModTime()) {
				continue
			}

			s.Trigger("change: " + event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}
