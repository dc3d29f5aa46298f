package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/relay-gateway/internal/dispatch"
)

// recorderQueueSize bounds entries waiting to be written.
const recorderQueueSize = 256

// pruneInterval is how often Run deletes entries past the retention window.
const pruneInterval = time.Hour

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Recorder is a dispatch.Observer that writes history entries.
//
// Observer callbacks only queue; Run performs the writes. When the queue is
// full the entry is dropped and counted.
type Recorder struct {
	repo      Repository
	retention time.Duration
	logger    Logger
	queue     chan Entry
	dropped   atomic.Int64
}

// NewRecorder creates a Recorder. A zero retention keeps entries forever.
func NewRecorder(repo Repository, retention time.Duration, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:      repo,
		retention: retention,
		logger:    logger,
		queue:     make(chan Entry, recorderQueueSize),
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// already queued.
func (r *Recorder) Run(ctx context.Context) error {
	var prune <-chan time.Time
	if r.retention > 0 {
		r.prune(ctx)
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case e := <-r.queue:
			r.write(ctx, e)
		case <-prune:
			r.prune(ctx)
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("audit write failed", "action", e.Action, "kind", e.Kind, "error", err)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	n, err := r.repo.Prune(ctx, time.Now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("audit prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("audit entries pruned", "count", n)
	}
}

func (r *Recorder) enqueue(e Entry) {
	e.CreatedAt = time.Now()
	select {
	case r.queue <- e:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("audit queue full, dropping entries")
		}
	}
}

// CommandCompleted records every command except read-only status polls and
// successful scheduled refreshes. A refresh that changed the registry is
// still recorded through StateChanged.
func (r *Recorder) CommandCompleted(kind dispatch.Kind, outcome string, elapsed time.Duration) {
	switch {
	case kind == dispatch.KindSystemStatus, kind == dispatch.KindPresetList:
		return
	case kind == dispatch.KindAutoRefresh && outcome == dispatch.OutcomeOK:
		return
	}
	r.enqueue(Entry{
		Action:  ActionCommand,
		Kind:    string(kind),
		Outcome: outcome,
		Details: map[string]any{"elapsed_ms": elapsed.Milliseconds()},
	})
}

// StateChanged records relay states and the active preset after a change.
func (r *Recorder) StateChanged(event dispatch.Event) {
	details := map[string]any{}
	if event.Preset != "" {
		details["preset"] = event.Preset
	}
	if event.Status.CurrentPreset != "" {
		details["current_preset"] = event.Status.CurrentPreset
	}
	if event.Type == dispatch.EventRegistryRefreshed {
		details["relay_count"] = len(event.Status.Relays)
	} else if len(event.Relays) > 0 {
		relays := make(map[string]any, len(event.Relays))
		for _, s := range event.Relays {
			relays[s.Name] = s.Status
		}
		details["relays"] = relays
	}
	r.enqueue(Entry{
		Action:  ActionState,
		Kind:    event.Type,
		Details: details,
	})
}

// CommandFailed records a command that ended in an error.
func (r *Recorder) CommandFailed(kind dispatch.Kind, err error) {
	r.enqueue(Entry{
		Action:  ActionFailure,
		Kind:    string(kind),
		Outcome: dispatch.OutcomeError,
		Details: map[string]any{"error": err.Error()},
	})
}
