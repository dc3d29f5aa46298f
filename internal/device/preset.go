package device

import (
	"maps"
	"slices"
	"strings"
)

// Reserved preset names.
const (
	// PresetCustom marks that relay state no longer follows any preset.
	PresetCustom = "Custom"

	// PresetFullOff switches every relay off.
	PresetFullOff = "FullOff"
)

// Preset is a named closed-world scene: relays listed in Relays are set to
// the mapped value, every other relay is switched off.
type Preset struct {
	Name    string          `json:"name" yaml:"name"`
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Relays  map[string]bool `json:"relays" yaml:"relays"`
}

// Desired returns the state a preset assigns to the named relay.
// Keys match case-insensitively; unlisted relays are off. An exact key
// wins, otherwise the first case-insensitive match in sorted key order.
func (p Preset) Desired(name string) bool {
	if on, ok := p.Relays[name]; ok {
		return on
	}
	for _, k := range slices.Sorted(maps.Keys(p.Relays)) {
		if strings.EqualFold(k, name) {
			return p.Relays[k]
		}
	}
	return false
}

// Equal reports whether two presets have the same name, flag and mapping.
func (p Preset) Equal(o Preset) bool {
	return p.Name == o.Name && p.Enabled == o.Enabled && maps.Equal(p.Relays, o.Relays)
}

// ReservedPresets returns fresh copies of Custom and FullOff.
func ReservedPresets() []Preset {
	return []Preset{
		{Name: PresetCustom, Enabled: false, Relays: map[string]bool{}},
		{Name: PresetFullOff, Enabled: false, Relays: map[string]bool{}},
	}
}
