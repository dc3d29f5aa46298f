package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/relay-gateway/internal/device"
)

// Logger defines the logging interface used by the Engine.
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

// Engine applies presets and group actions to a registry.
type Engine struct {
	logger Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{logger: logger}
}

// PresetResult describes a preset application.
type PresetResult struct {
	Preset  string            `json:"preset"`
	Applied bool              `json:"applied"`
	Relays  []device.Snapshot `json:"relays"`
}

// TagResult describes a group action on all relays carrying a tag.
type TagResult struct {
	Tag    string            `json:"tag"`
	Action Action            `json:"action"`
	Relays []device.Snapshot `json:"relays"`
}

// ApplyPreset drives every relay in reg to the state the preset assigns it.
// Relays the preset does not mention are switched off.
//
// Every relay is attempted even after a failure, and nothing is rolled
// back. On full success the registry's current preset becomes
// preset.Name; otherwise it is reset to Custom and an *ApplyError is
// returned alongside the partial result.
func (e *Engine) ApplyPreset(ctx context.Context, preset device.Preset, reg *device.Registry) (PresetResult, error) {
	started := time.Now()
	devices := reg.Devices()

	e.logger.Info("preset activation started",
		"preset", preset.Name,
		"relays", len(devices),
	)

	result := PresetResult{Preset: preset.Name, Relays: make([]device.Snapshot, 0, len(devices))}
	var failures []Failure
	for _, d := range devices {
		want := preset.Desired(d.Name())
		var (
			snap device.Snapshot
			err  error
		)
		if want {
			snap, err = d.TurnOn(ctx)
		} else {
			snap, err = d.TurnOff(ctx)
		}
		if err != nil {
			e.logger.Warn("preset relay failed", "preset", preset.Name, "relay", d.Name(), "error", err)
			failures = append(failures, Failure{Relay: d.Name(), Err: err})
		}
		result.Relays = append(result.Relays, snap)
	}

	if len(failures) > 0 {
		reg.SetCurrentPreset(device.PresetCustom)
		e.logger.Info("preset activation complete",
			"preset", preset.Name,
			"status", "partial",
			"failed", len(failures),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return result, &ApplyError{Scope: "preset", Name: preset.Name, Failures: failures}
	}

	reg.SetCurrentPreset(preset.Name)
	result.Applied = true
	e.logger.Info("preset activation complete",
		"preset", preset.Name,
		"status", "completed",
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// ApplyToTag runs action on every relay carrying tag.
//
// An empty selection is device.ErrNotFound. For ActionQueryStatus the
// result holds fresh snapshots of every selected relay. Mutating actions
// reset the current preset to Custom, even if some relays fail.
func (e *Engine) ApplyToTag(ctx context.Context, tag string, action Action, reg *device.Registry) (TagResult, error) {
	if !action.Valid() {
		return TagResult{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	selected := reg.WithTag(tag)
	if len(selected) == 0 {
		return TagResult{}, fmt.Errorf("%w: no relays tagged %q", device.ErrNotFound, tag)
	}

	result := TagResult{Tag: tag, Action: action, Relays: make([]device.Snapshot, 0, len(selected))}
	var failures []Failure
	for _, d := range selected {
		snap, err := apply(ctx, d, action)
		if err != nil {
			e.logger.Warn("tag relay failed", "tag", tag, "action", string(action), "relay", d.Name(), "error", err)
			failures = append(failures, Failure{Relay: d.Name(), Err: err})
		}
		result.Relays = append(result.Relays, snap)
	}

	if action.Mutates() {
		reg.SetCurrentPreset(device.PresetCustom)
	}
	e.logger.Debug("tag action applied", "tag", tag, "action", string(action), "relays", len(selected), "failed", len(failures))

	if len(failures) > 0 {
		return result, &ApplyError{Scope: "tag", Name: tag, Failures: failures}
	}
	return result, nil
}

// ApplyToRelay runs action on a single relay and returns its snapshot.
// Mutating actions reset the current preset to Custom.
func (e *Engine) ApplyToRelay(ctx context.Context, relay device.Relay, action Action, reg *device.Registry) (device.Snapshot, error) {
	if !action.Valid() {
		return device.Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	snap, err := apply(ctx, relay, action)
	if action.Mutates() {
		reg.SetCurrentPreset(device.PresetCustom)
	}
	if err != nil {
		return snap, err
	}
	e.logger.Debug("relay action applied", "relay", relay.Name(), "action", string(action), "status", snap.Status)
	return snap, nil
}
