package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/pipeline"
)

// Options configures the completeness gate.
type Options struct {
	// StabilityWindow is how long a file's size must hold before it is
	// considered fully written. Default 5s.
	StabilityWindow time.Duration
	// MaxWait bounds the whole gate; a file that never stabilises is
	// abandoned with a warning. Default 120s.
	MaxWait time.Duration
	// PollInterval between size checks. Default 1s.
	PollInterval time.Duration
}

func (o *Options) defaults() {
	if o.StabilityWindow <= 0 {
		o.StabilityWindow = 5 * time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 120 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
}

// Watcher monitors the IVR drop directory for new recordings. Each
// audio-suffixed file is gated on write-completeness, deduplicated against
// the processed set, and emitted as a Task on the sink channel.
type Watcher struct {
	dir       string
	sink      chan<- pipeline.Task
	processed *ProcessedSet
	opts      Options
	log       zerolog.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	// Stats
	filesEmitted   atomic.Int64
	filesSkipped   atomic.Int64
	filesAbandoned atomic.Int64
	status         atomic.Value // string: "starting", "backfilling", "watching", "stopped"
}

// New creates a watcher over dir emitting to sink.
func New(dir string, sink chan<- pipeline.Task, processed *ProcessedSet, opts Options, log zerolog.Logger) *Watcher {
	opts.defaults()
	w := &Watcher{
		dir:            dir,
		sink:           sink,
		processed:      processed,
		opts:           opts,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start begins watching. The backfill sweep for pre-existing files runs in
// the background; the dedup set suppresses any overlap with live events.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.log.Info().Str("watch_dir", w.dir).Msg("file watcher initialized")

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.backfill(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.watchLoop(ctx)
	}()

	return nil
}

// Stop closes the fsnotify watcher, cancels debounce timers that have not
// fired, and waits for in-flight gates to drain.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		// A timer that already fired settles its own WaitGroup slot.
		if t.Stop() {
			delete(w.debounceTimers, path)
			w.wg.Done()
		}
	}
	w.debounceMu.Unlock()

	w.wg.Wait()
	w.log.Info().
		Int64("files_emitted", w.filesEmitted.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Int64("files_abandoned", w.filesAbandoned.Load()).
		Msg("file watcher stopped")
}

// Stats is a snapshot for the status endpoint.
type Stats struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	FilesEmitted   int64  `json:"files_emitted"`
	FilesSkipped   int64  `json:"files_skipped"`
	FilesAbandoned int64  `json:"files_abandoned"`
}

// Status returns the current watcher stats.
func (w *Watcher) Status() Stats {
	s, _ := w.status.Load().(string)
	return Stats{
		Status:         s,
		WatchDir:       w.dir,
		FilesEmitted:   w.filesEmitted.Load(),
		FilesSkipped:   w.filesSkipped.Load(),
		FilesAbandoned: w.filesAbandoned.Load(),
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !pipeline.IsAudioPath(event.Name) {
				// A sidecar marker means its audio file is final now.
				if strings.HasSuffix(event.Name, ".complete") {
					if audio := strings.TrimSuffix(event.Name, ".complete"); pipeline.IsAudioPath(audio) {
						w.scheduleProcess(ctx, audio)
					}
				}
				continue
			}
			w.scheduleProcess(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces by 500ms to coalesce rapid Create+Write events
// before the completeness gate takes over.
func (w *Watcher) scheduleProcess(ctx context.Context, path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	// The gate joins the WaitGroup before the timer is armed; Stop either
	// cancels the timer and gives the slot back, or waits for the gate.
	w.wg.Add(1)
	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		defer w.wg.Done()

		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.gateAndEmit(ctx, path)
	})
}

// gateAndEmit runs the completeness gate and, on success, claims the id in
// the processed set and pushes a task to the pipeline.
func (w *Watcher) gateAndEmit(ctx context.Context, path string) {
	task := pipeline.NewTask(path)

	if w.processed.Seen(task.ID) {
		w.filesSkipped.Add(1)
		return
	}

	if err := w.waitComplete(ctx, path); err != nil {
		w.filesAbandoned.Add(1)
		w.log.Warn().Err(err).Str("path", path).Msg("file never stabilised, abandoning")
		return
	}

	// Claim the id before emitting; a duplicate event racing here loses.
	fresh, err := w.processed.Mark(task.ID)
	if err != nil {
		w.log.Error().Err(err).Str("id", task.ID).Msg("failed to persist processed set")
	}
	if !fresh {
		w.filesSkipped.Add(1)
		return
	}

	select {
	case w.sink <- task:
		w.filesEmitted.Add(1)
		w.log.Info().Str("id", task.ID).Str("path", path).Msg("recording ready")
	case <-ctx.Done():
	}
}

// waitComplete blocks until the file is safe to read: a sidecar marker wins
// immediately, otherwise the size must hold for the stability window.
func (w *Watcher) waitComplete(ctx context.Context, path string) error {
	if _, err := os.Stat(path + ".complete"); err == nil {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Errf(pipeline.KindNotReady, "stat %s: %w", path, err)
	}

	// Small files may still be mid-flight from the PBX.
	if info.Size() < 1024 {
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	deadline := time.Now().Add(w.opts.MaxWait)
	lastSize := int64(-1)
	stableSince := time.Now()

	for {
		if _, err := os.Stat(path + ".complete"); err == nil {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return pipeline.Errf(pipeline.KindNotReady, "stat %s: %w", path, err)
		}

		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		} else if time.Since(stableSince) >= w.opts.StabilityWindow {
			return nil
		}

		if time.Now().After(deadline) {
			return pipeline.Errf(pipeline.KindNotReady, "no stable size within %s", w.opts.MaxWait)
		}

		select {
		case <-time.After(w.opts.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backfill sweeps the directory for recordings that arrived while the
// process was down, oldest first.
func (w *Watcher) backfill(ctx context.Context) {
	w.status.Store("backfilling")

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Msg("backfill scan failed")
		w.status.Store("watching")
		return
	}

	type fileEntry struct {
		path string
		mod  time.Time
	}
	var files []fileEntry
	for _, e := range entries {
		if e.IsDir() || !pipeline.IsAudioPath(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{path: filepath.Join(w.dir, e.Name()), mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	if len(files) > 0 {
		w.log.Info().Int("files", len(files)).Msg("backfill starting")
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.gateAndEmit(ctx, f.path)
	}

	w.status.Store("watching")
}
