package journal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultPattern matches the journal filenames the game writes.
const DefaultPattern = "Journal*.log"

// DefaultDebounce coalesces the write bursts journal flushes arrive in.
const DefaultDebounce = 500 * time.Millisecond

// DefaultDedupeSize is the capacity of the recently-emitted-name LRU.
const DefaultDedupeSize = 1024

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoRootConfigured indicates no journal directory was specified.
	ErrNoRootConfigured = errors.New("no journal directory configured")

	// ErrRootNotExist indicates the journal directory does not exist.
	ErrRootNotExist = errors.New("journal directory does not exist")

	// ErrRootNotDirectory indicates the journal path is not a directory.
	ErrRootNotDirectory = errors.New("journal path is not a directory")

	// ErrInvalidPattern indicates the filename pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid journal filename pattern")
)

// =============================================================================
// FollowConfig
// =============================================================================

// FollowConfig configures the journal directory follower.
type FollowConfig struct {
	// Root is the journal directory to watch.
	Root string

	// Pattern is the glob filenames must match to be followed.
	// Default is DefaultPattern.
	Pattern string

	// Debounce is the interval to wait before draining a written file.
	Debounce time.Duration

	// DedupeSize is the capacity of the recently-emitted-name LRU.
	DedupeSize int
}

// DefaultFollowConfig returns a configuration with sensible defaults.
func DefaultFollowConfig(root string) FollowConfig {
	return FollowConfig{
		Root:       root,
		Pattern:    DefaultPattern,
		Debounce:   DefaultDebounce,
		DedupeSize: DefaultDedupeSize,
	}
}

// =============================================================================
// Follower
// =============================================================================

// Follower tails a journal directory and emits newly observed system names.
// Existing file content is skipped at start; only appended lines are
// scanned. A bounded LRU suppresses re-emission when the game rewrites
// recent journal lines.
type Follower struct {
	config  FollowConfig
	pattern glob.Glob
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	offsets  map[string]int64
	pending  map[string]*time.Timer
	seen     *lru.Cache[string, struct{}]
	nameCh   chan string
	stopOnce sync.Once
	stopped  bool
}

// FollowerOption is a functional option for configuring a Follower.
type FollowerOption func(*Follower)

// WithFollowLogger sets the structured logger.
func WithFollowLogger(logger *slog.Logger) FollowerOption {
	return func(f *Follower) { f.logger = logger }
}

// NewFollower creates a Follower for the configured directory.
// Returns an error if the root is invalid or the pattern cannot compile.
func NewFollower(config FollowConfig, opts ...FollowerOption) (*Follower, error) {
	if err := validateFollowConfig(&config); err != nil {
		return nil, err
	}

	pattern, err := glob.Compile(config.Pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}

	seen, err := lru.New[string, struct{}](config.DedupeSize)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	f := &Follower{
		config:  config,
		pattern: pattern,
		watcher: watcher,
		logger:  slog.Default(),
		offsets: make(map[string]int64),
		pending: make(map[string]*time.Timer),
		seen:    seen,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// =============================================================================
// Validation
// =============================================================================

// validateFollowConfig checks the root and applies defaults.
func validateFollowConfig(config *FollowConfig) error {
	if config.Root == "" {
		return ErrNoRootConfigured
	}

	info, err := os.Stat(config.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrRootNotExist
		}
		return err
	}
	if !info.IsDir() {
		return ErrRootNotDirectory
	}

	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.DedupeSize <= 0 {
		config.DedupeSize = DefaultDedupeSize
	}
	return nil
}

// =============================================================================
// Start
// =============================================================================

// Start begins following the journal directory.
// Returns a channel of system names that is closed when the context is
// cancelled or Stop is called.
func (f *Follower) Start(ctx context.Context) (<-chan string, error) {
	f.nameCh = make(chan string, 64)

	if err := f.primeOffsets(); err != nil {
		close(f.nameCh)
		return nil, err
	}

	if err := f.watcher.Add(f.config.Root); err != nil {
		close(f.nameCh)
		return nil, err
	}

	go f.processEvents(ctx)

	return f.nameCh, nil
}

// primeOffsets records the current size of every matching file so only
// appended content is scanned.
func (f *Follower) primeOffsets() error {
	entries, err := os.ReadDir(f.config.Root)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !f.pattern.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f.offsets[filepath.Join(f.config.Root, entry.Name())] = info.Size()
	}
	return nil
}

// =============================================================================
// Event Processing
// =============================================================================

// processEvents reads from fsnotify until the context ends.
func (f *Follower) processEvents(ctx context.Context) {
	defer f.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("journal watch error", "error", err)
		}
	}
}

// handleEvent reacts to one fsnotify event on a matching journal file.
func (f *Follower) handleEvent(event fsnotify.Event) {
	if !f.pattern.Match(filepath.Base(event.Name)) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		f.trackNewFile(event.Name)
		f.scheduleDrain(event.Name)
	case event.Has(fsnotify.Write):
		f.scheduleDrain(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		f.forgetFile(event.Name)
	}
}

func (f *Follower) trackNewFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets[path] = 0
}

func (f *Follower) forgetFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.offsets, path)
	if timer, ok := f.pending[path]; ok {
		timer.Stop()
		delete(f.pending, path)
	}
}

// =============================================================================
// Debouncing and Draining
// =============================================================================

// scheduleDrain arms (or re-arms) the debounce timer for one file.
func (f *Follower) scheduleDrain(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return
	}

	if timer, ok := f.pending[path]; ok {
		timer.Stop()
	}
	f.pending[path] = time.AfterFunc(f.config.Debounce, func() {
		f.drainFile(path)
	})
}

// drainFile scans the lines appended since the last drain. A shrunken file
// means rotation or truncation, so scanning restarts from the top. Partial
// trailing lines stay unconsumed until the next write completes them.
func (f *Follower) drainFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return
	}
	delete(f.pending, path)

	file, err := os.Open(path)
	if err != nil {
		f.logger.Warn("journal open failed", "file", path, "error", err)
		return
	}
	defer file.Close()

	offset := f.offsets[path]
	if info, err := file.Stat(); err == nil && info.Size() < offset {
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		f.logger.Warn("journal seek failed", "file", path, "error", err)
		return
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				f.logger.Warn("journal read failed", "file", path, "error", err)
			}
			break
		}
		offset += int64(len(line))

		if name, ok := MatchLine(line); ok {
			f.emitName(name)
		}
	}

	f.offsets[path] = offset
}

// emitName delivers one name unless the LRU has seen it recently.
func (f *Follower) emitName(name string) {
	if f.seen.Contains(name) {
		return
	}
	f.seen.Add(name, struct{}{})

	select {
	case f.nameCh <- name:
	default:
		f.logger.Warn("journal name channel full, dropping", "system", name)
	}
}

// =============================================================================
// Stop
// =============================================================================

// Stop stops the follower and closes the name channel.
// Safe to call multiple times.
func (f *Follower) Stop() error {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.stopped = true
		for _, timer := range f.pending {
			timer.Stop()
		}
		f.pending = make(map[string]*time.Timer)
		f.mu.Unlock()

		f.watcher.Close()
	})

	return nil
}

// cleanup closes the name channel and the watcher when processing stops,
// covering cancellation without an explicit Stop call.
func (f *Follower) cleanup() {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		for _, timer := range f.pending {
			timer.Stop()
		}
		f.pending = make(map[string]*time.Timer)
	}
	close(f.nameCh)
	f.mu.Unlock()

	f.watcher.Close()
}
