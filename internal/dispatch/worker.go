package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/relay-gateway/internal/automation"
	"github.com/nerrad567/relay-gateway/internal/device"
)

// defaultQueueSize is the command queue capacity when Config leaves it zero.
const defaultQueueSize = 64

// State is the worker's processing state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateRefreshing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateRefreshing:
		return "refreshing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Command outcomes reported to observers.
const (
	OutcomeOK    = "ok"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Event types reported through Observer.StateChanged.
const (
	EventRelayState        = "relay.state"
	EventPresetApplied     = "preset.applied"
	EventRegistryRefreshed = "registry.refreshed"
)

// Event describes a change of relay or registry state.
type Event struct {
	Type   string            `json:"type"`
	Preset string            `json:"preset,omitempty"`
	Relays []device.Snapshot `json:"relays,omitempty"`
	Status SystemStatusValue `json:"status"`
}

// Provider produces a fresh registry from the configuration source.
type Provider interface {
	Load(ctx context.Context) (*device.Registry, error)
}

// Observer is notified by the worker goroutine after each command.
// Implementations must not block and must not submit commands.
type Observer interface {
	CommandCompleted(kind Kind, outcome string, elapsed time.Duration)
	StateChanged(event Event)
	CommandFailed(kind Kind, err error)
}

// Logger defines the logging interface used by the Worker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds worker settings.
type Config struct {
	// QueueSize is the command queue capacity.
	// Default: 64.
	QueueSize int

	// Logger receives worker diagnostics. Default: discard.
	Logger Logger

	// Observers are notified after each command.
	Observers []Observer
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Worker is the single consumer of the command queue and sole owner of
// the registry.
type Worker struct {
	provider  Provider
	registry  *device.Registry
	engine    *automation.Engine
	logger    Logger
	observers []Observer

	queue chan Command
	state atomic.Int32

	started atomic.Bool
	done    *closeOnce // Close requested
	stopped *closeOnce // Run returned
}

// New creates a worker that owns initial. Run must be called to start it.
func New(provider Provider, initial *device.Registry, cfg Config) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if initial == nil {
		initial = device.NewRegistry(nil, device.ReservedPresets())
	}
	return &Worker{
		provider:  provider,
		registry:  initial,
		engine:    automation.NewEngine(cfg.Logger),
		logger:    cfg.Logger,
		observers: cfg.Observers,
		queue:     make(chan Command, cfg.QueueSize),
		done:      newCloseOnce(),
		stopped:   newCloseOnce(),
	}
}

// AddObserver registers an observer. It must be called before Run.
func (w *Worker) AddObserver(o Observer) {
	w.observers = append(w.observers, o)
}

// State returns the current processing state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// QueueDepth returns the number of commands waiting to be processed.
func (w *Worker) QueueDepth() int {
	return len(w.queue)
}

// Run processes commands until ctx is cancelled or Close is called.
// Commands still queued on exit are answered with ErrChannelClosed.
// Run may be called once; later calls return ErrChannelClosed.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrChannelClosed
	}
	defer func() {
		w.setState(StateStopped)
		w.stopped.Close()
		w.drain()
	}()

	w.logger.Info("dispatch worker started", "relays", w.registry.Len(), "queue_size", cap(w.queue))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("dispatch worker stopping", "reason", ctx.Err())
			return nil
		case <-w.done.Done():
			w.logger.Info("dispatch worker stopping", "reason", "closed")
			return nil
		case cmd := <-w.queue:
			w.process(ctx, cmd)
		}
	}
}

// Close stops the worker after the command in progress completes.
func (w *Worker) Close() {
	w.done.Close()
	if w.started.CompareAndSwap(false, true) {
		// Run was never called.
		w.setState(StateStopped)
		w.stopped.Close()
		w.drain()
	}
}

// Submit queues cmd and waits for its Response.
//
// It returns ErrChannelClosed if the worker is stopped, or ctx.Err() if
// ctx ends first. An abandoned command is still processed.
func (w *Worker) Submit(ctx context.Context, cmd Command) (Response, error) {
	if cmd.ID == "" {
		cmd.ID = newID()
	}
	cmd.reply = make(chan Response, 1)

	select {
	case <-w.done.Done():
		return Response{}, ErrChannelClosed
	case <-w.stopped.Done():
		return Response{}, ErrChannelClosed
	default:
	}

	select {
	case w.queue <- cmd:
	case <-w.done.Done():
		return Response{}, ErrChannelClosed
	case <-w.stopped.Done():
		return Response{}, ErrChannelClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-cmd.reply:
		return resp, nil
	case <-w.stopped.Done():
		select {
		case resp := <-cmd.reply:
			return resp, nil
		default:
			return Response{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Enqueue queues cmd without waiting for a Response. It never blocks.
func (w *Worker) Enqueue(cmd Command) error {
	if cmd.ID == "" {
		cmd.ID = newID()
	}
	select {
	case <-w.done.Done():
		return ErrChannelClosed
	case <-w.stopped.Done():
		return ErrChannelClosed
	default:
	}
	select {
	case w.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// drain answers queued commands after the loop has exited.
func (w *Worker) drain() {
	for {
		select {
		case cmd := <-w.queue:
			w.reply(cmd, errorResponse(cmd.ID, ErrChannelClosed))
		default:
			return
		}
	}
}

func (w *Worker) reply(cmd Command, resp Response) {
	if cmd.reply == nil {
		return
	}
	// Capacity 1 and one reply per command: never blocks.
	cmd.reply <- resp
}

func (w *Worker) process(ctx context.Context, cmd Command) {
	started := time.Now()
	if cmd.Kind == KindRefresh || cmd.Kind == KindAutoRefresh {
		w.setState(StateRefreshing)
	} else {
		w.setState(StateProcessing)
	}
	defer w.setState(StateIdle)

	resp, send := w.handle(ctx, cmd)
	elapsed := time.Since(started)

	outcome := OutcomeOK
	switch {
	case resp.Kind == ResponseError:
		outcome = OutcomeError
		err := resp.Err()
		w.logger.Warn("command failed",
			"request_id", cmd.ID,
			"kind", string(cmd.Kind),
			"target", cmd.Target,
			"error", err,
		)
		for _, o := range w.observers {
			o.CommandFailed(cmd.Kind, err)
		}
	case cmd.Kind == KindRelay && resp.Kind == ResponseBool && !resp.Bool && cmd.Action != automation.ActionQueryStatus:
		outcome = OutcomeMiss
	}

	for _, o := range w.observers {
		o.CommandCompleted(cmd.Kind, outcome, elapsed)
	}
	w.logger.Debug("command processed",
		"request_id", cmd.ID,
		"kind", string(cmd.Kind),
		"outcome", outcome,
		"duration_ms", elapsed.Milliseconds(),
	)

	if send {
		w.reply(cmd, resp)
	}
}

// handle runs one command. send is false when no Response is due.
func (w *Worker) handle(ctx context.Context, cmd Command) (resp Response, send bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("command handler panic",
				"request_id", cmd.ID,
				"kind", string(cmd.Kind),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			resp = errorResponse(cmd.ID, fmt.Errorf("%w: %v", ErrInternal, r))
			send = true
		}
	}()

	switch cmd.Kind {
	case KindSystemStatus:
		return valueResponse(cmd.ID, w.systemStatus()), true
	case KindRefresh:
		return w.handleRefresh(ctx, cmd), true
	case KindAutoRefresh:
		r := w.handleRefresh(ctx, cmd)
		return r, r.Kind == ResponseError
	case KindRelay:
		return w.handleRelay(ctx, cmd), true
	case KindTag:
		return w.handleTag(ctx, cmd), true
	case KindPresetSet:
		return w.handlePresetSet(ctx, cmd), true
	case KindPresetList:
		return valueResponse(cmd.ID, w.registry.PresetNames()), true
	default:
		return errorResponse(cmd.ID, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)), true
	}
}

func (w *Worker) systemStatus() SystemStatusValue {
	return SystemStatusValue{
		Relays:        w.registry.Snapshots(),
		Rooms:         w.registry.Rooms(),
		CurrentPreset: w.registry.CurrentPreset(),
	}
}

func (w *Worker) handleRefresh(ctx context.Context, cmd Command) Response {
	if w.provider == nil {
		return errorResponse(cmd.ID, errors.New("dispatch: no config provider"))
	}
	next, err := w.provider.Load(ctx)
	if err != nil {
		return errorResponse(cmd.ID, fmt.Errorf("refreshing registry: %w", err))
	}
	if w.registry.Equal(next) {
		w.logger.Debug("registry unchanged", "kind", string(cmd.Kind), "relays", next.Len())
		return boolResponse(cmd.ID, true)
	}

	w.registry.Replace(next)
	w.logger.Info("registry replaced",
		"kind", string(cmd.Kind),
		"relays", w.registry.Len(),
		"presets", len(w.registry.PresetNames()),
	)
	w.emit(Event{Type: EventRegistryRefreshed})
	return boolResponse(cmd.ID, true)
}

func (w *Worker) handleRelay(ctx context.Context, cmd Command) Response {
	relay, ok := w.registry.Lookup(cmd.Target)
	if !ok {
		w.logger.Debug("relay not found", "relay", cmd.Target)
		return boolResponse(cmd.ID, false)
	}

	snap, err := w.engine.ApplyToRelay(ctx, relay, cmd.Action, w.registry)
	if err != nil {
		return errorResponse(cmd.ID, err)
	}
	if cmd.Action == automation.ActionQueryStatus {
		return boolResponse(cmd.ID, snap.Status)
	}
	w.emit(Event{Type: EventRelayState, Relays: []device.Snapshot{snap}})
	return valueResponse(cmd.ID, snap)
}

func (w *Worker) handleTag(ctx context.Context, cmd Command) Response {
	result, err := w.engine.ApplyToTag(ctx, cmd.Target, cmd.Action, w.registry)
	if cmd.Action.Mutates() && len(result.Relays) > 0 {
		w.emit(Event{Type: EventRelayState, Relays: result.Relays})
	}
	if err != nil {
		return errorResponse(cmd.ID, err)
	}
	return valueResponse(cmd.ID, result.Relays)
}

func (w *Worker) handlePresetSet(ctx context.Context, cmd Command) Response {
	preset, ok := w.registry.LookupPreset(cmd.Target)
	if !ok {
		return errorResponse(cmd.ID, fmt.Errorf("%w: preset %q", device.ErrNotFound, cmd.Target))
	}

	result, err := w.engine.ApplyPreset(ctx, preset, w.registry)
	if err != nil {
		w.emit(Event{Type: EventRelayState, Relays: result.Relays})
		return errorResponse(cmd.ID, err)
	}
	w.emit(Event{Type: EventPresetApplied, Preset: preset.Name, Relays: result.Relays})
	return valueResponse(cmd.ID, result)
}

// emit fills in the system status and notifies observers.
func (w *Worker) emit(ev Event) {
	if len(w.observers) == 0 {
		return
	}
	ev.Status = w.systemStatus()
	for _, o := range w.observers {
		o.StateChanged(ev)
	}
}
