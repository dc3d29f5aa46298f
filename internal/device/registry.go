package device

import (
	"slices"
	"sort"
	"strings"
)

// Registry is the in-memory snapshot of relays and presets.
//
// It is not safe for concurrent use: the dispatch worker owns it and every
// other goroutine goes through the worker's command queue.
type Registry struct {
	devices       map[string]Relay
	presets       map[string]Preset
	currentPreset string
}

// NewRegistry builds a registry from relays and presets. On duplicate names
// the first entry wins. currentPreset starts as Custom.
func NewRegistry(devices []Relay, presets []Preset) *Registry {
	r := &Registry{
		devices:       make(map[string]Relay, len(devices)),
		presets:       make(map[string]Preset, len(presets)),
		currentPreset: PresetCustom,
	}
	for _, d := range devices {
		if d == nil {
			continue
		}
		if _, ok := r.devices[d.Name()]; !ok {
			r.devices[d.Name()] = d
		}
	}
	for _, p := range presets {
		if _, ok := r.presets[p.Name]; !ok {
			r.presets[p.Name] = p
		}
	}
	return r
}

// Lookup returns the relay with the given name. An exact match is
// preferred; otherwise the first case-insensitive match in name order.
func (r *Registry) Lookup(name string) (Relay, bool) {
	if d, ok := r.devices[name]; ok {
		return d, true
	}
	for _, k := range sortedKeys(r.devices) {
		if strings.EqualFold(k, name) {
			return r.devices[k], true
		}
	}
	return nil, false
}

// LookupPreset returns the preset with the given name, matched like Lookup.
func (r *Registry) LookupPreset(name string) (Preset, bool) {
	if p, ok := r.presets[name]; ok {
		return p, true
	}
	for _, k := range sortedKeys(r.presets) {
		if strings.EqualFold(k, name) {
			return r.presets[k], true
		}
	}
	return Preset{}, false
}

// Devices returns all relays sorted by name.
func (r *Registry) Devices() []Relay {
	out := make([]Relay, 0, len(r.devices))
	for _, k := range sortedKeys(r.devices) {
		out = append(out, r.devices[k])
	}
	return out
}

// Len returns the number of relays.
func (r *Registry) Len() int {
	return len(r.devices)
}

// Presets returns all presets sorted by name.
func (r *Registry) Presets() []Preset {
	out := make([]Preset, 0, len(r.presets))
	for _, k := range sortedKeys(r.presets) {
		out = append(out, r.presets[k])
	}
	return out
}

// PresetNames returns preset names sorted, with original casing.
func (r *Registry) PresetNames() []string {
	return sortedKeys(r.presets)
}

// CurrentPreset returns the name of the last applied preset, or Custom.
func (r *Registry) CurrentPreset() string {
	return r.currentPreset
}

// SetCurrentPreset records the active preset marker.
func (r *Registry) SetCurrentPreset(name string) {
	r.currentPreset = name
}

// Rooms returns the distinct non-empty rooms, sorted.
func (r *Registry) Rooms() []string {
	seen := make(map[string]struct{})
	rooms := make([]string, 0)
	for _, d := range r.devices {
		room := d.Room()
		if room == "" {
			continue
		}
		if _, ok := seen[room]; ok {
			continue
		}
		seen[room] = struct{}{}
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// WithTag returns relays carrying tag (case-insensitive), sorted by name.
func (r *Registry) WithTag(tag string) []Relay {
	var out []Relay
	for _, d := range r.Devices() {
		if HasTag(d, tag) {
			out = append(out, d)
		}
	}
	return out
}

// Snapshots returns the serialised view of every relay, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.devices))
	for _, d := range r.Devices() {
		out = append(out, d.Snapshot())
	}
	return out
}

// Equal reports whether other holds the same relays and presets.
// Cached relay status and the current preset marker are ignored.
func (r *Registry) Equal(other *Registry) bool {
	if other == nil {
		return false
	}
	if len(r.devices) != len(other.devices) || len(r.presets) != len(other.presets) {
		return false
	}
	for name, d := range r.devices {
		o, ok := other.devices[name]
		if !ok || !Equal(d, o) {
			return false
		}
	}
	for name, p := range r.presets {
		o, ok := other.presets[name]
		if !ok || !p.Equal(o) {
			return false
		}
	}
	return true
}

// Replace adopts the relays and presets of other. The current preset
// marker is kept; it is reset to Custom only if that preset disappeared.
func (r *Registry) Replace(other *Registry) {
	r.devices = other.devices
	r.presets = other.presets
	if _, ok := r.presets[r.currentPreset]; !ok {
		r.currentPreset = PresetCustom
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
