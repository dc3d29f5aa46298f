package provider

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
	"github.com/nerrad567/relay-gateway/internal/device"
)

// defaultProbeConcurrency bounds parallel connectivity probes.
const defaultProbeConcurrency = 8

// Logger defines the logging interface used by providers.
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

// Builder turns a Document into a probed Registry.
type Builder struct {
	transport   kasa.Transport
	concurrency int
	logger      Logger
}

// NewBuilder creates a builder. concurrency <= 0 uses the default of 8.
func NewBuilder(transport kasa.Transport, concurrency int, logger Logger) *Builder {
	if concurrency <= 0 {
		concurrency = defaultProbeConcurrency
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Builder{transport: transport, concurrency: concurrency, logger: logger}
}

// Build probes every relay in doc and returns a registry of those that
// answered. Entries are kept in document order, so on duplicate names the
// first entry wins. Build fails only when ctx ends.
func (b *Builder) Build(ctx context.Context, doc Document) (*device.Registry, error) {
	probed := make([][]device.Relay, len(doc.Relays))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, entry := range doc.Relays {
		g.Go(func() error {
			probed[i] = b.probe(gctx, entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loading relays: %w", err)
	}

	var relays []device.Relay
	seen := make(map[string]string)
	for _, group := range probed {
		for _, r := range group {
			if host, dup := seen[r.Name()]; dup {
				b.logger.Warn("duplicate relay name ignored", "relay", r.Name(), "host", r.Host(), "kept_host", host)
				continue
			}
			seen[r.Name()] = r.Host()
			relays = append(relays, r)
		}
	}

	reg := device.NewRegistry(relays, withReservedPresets(doc.Presets))
	b.logger.Info("registry built",
		"configured", len(doc.Relays),
		"relays", reg.Len(),
		"presets", len(reg.PresetNames()),
	)
	return reg, nil
}

// probe constructs the relays of one entry and checks they answer.
// Unknown types and unreachable relays yield nothing.
func (b *Builder) probe(ctx context.Context, entry RelayDoc) []device.Relay {
	switch entry.Type {
	case device.TypeSingleOutlet:
		plug, err := device.NewSingleOutlet(b.transport, entry.IP, entry.Name, entry.Room, entry.Tags)
		if err != nil {
			b.logger.Warn("invalid relay entry", "relay", entry.Label(), "error", err)
			return nil
		}
		if err := plug.Connected(ctx); err != nil {
			b.logger.Warn("relay excluded, probe failed", "relay", entry.Name, "ip", entry.IP, "error", err)
			return nil
		}
		return []device.Relay{plug}

	case device.TypeManagedOutlet:
		names := entry.Names
		if len(names) == 0 && entry.Name != "" {
			names = []string{entry.Name}
		}
		outlets, reported, err := device.NewManagedOutlets(ctx, b.transport, entry.IP, names, entry.Room, entry.Tags)
		if err != nil {
			b.logger.Warn("power strip excluded, probe failed", "relays", entry.Label(), "ip", entry.IP, "error", err)
			return nil
		}
		if reported != len(names) {
			b.logger.Warn("power strip outlet count mismatch",
				"ip", entry.IP,
				"configured", len(names),
				"reported", reported,
				"paired", len(outlets),
			)
		}
		relays := make([]device.Relay, 0, len(outlets))
		for _, o := range outlets {
			relays = append(relays, o)
		}
		return relays

	default:
		b.logger.Warn("relay excluded",
			"relay", entry.Label(),
			"error", fmt.Errorf("%w: %q", device.ErrUnknownType, entry.Type),
		)
		return nil
	}
}

// withReservedPresets appends Custom and FullOff unless already defined.
func withReservedPresets(presets []device.Preset) []device.Preset {
	out := make([]device.Preset, 0, len(presets)+2)
	out = append(out, presets...)
	for _, reserved := range device.ReservedPresets() {
		defined := false
		for _, p := range presets {
			if strings.EqualFold(p.Name, reserved.Name) {
				defined = true
				break
			}
		}
		if !defined {
			out = append(out, reserved)
		}
	}
	return out
}
