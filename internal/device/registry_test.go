package device

import (
	"context"
	"slices"
	"testing"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa/kasatest"
)

func testRegistry(t *testing.T) (*Registry, *kasatest.Network) {
	t.Helper()
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)
	net.AddPlug("10.0.0.2", false)
	net.AddPlug("10.0.0.3", false)

	devices := []Relay{
		newPlug(t, net, "10.0.0.2", "Fan", "bedroom", "cooling"),
		newPlug(t, net, "10.0.0.1", "Lamp", "office", "lights", "night"),
		newPlug(t, net, "10.0.0.3", "Heater", "office"),
	}
	presets := append(ReservedPresets(), Preset{Name: "Evening", Enabled: true, Relays: map[string]bool{"Lamp": true}})
	return NewRegistry(devices, presets), net
}

func TestRegistry_Lookup(t *testing.T) {
	reg, _ := testRegistry(t)

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{query: "Lamp", want: "Lamp", found: true},
		{query: "lamp", want: "Lamp", found: true},
		{query: "FAN", want: "Fan", found: true},
		{query: "Toaster", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d, ok := reg.Lookup(tt.query)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && d.Name() != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.query, d.Name(), tt.want)
			}
		})
	}
}

func TestRegistry_LookupPrefersExactMatch(t *testing.T) {
	net := kasatest.NewNetwork()
	reg := NewRegistry([]Relay{
		newPlug(t, net, "h1", "lamp", ""),
		newPlug(t, net, "h2", "Lamp", ""),
	}, nil)

	d, ok := reg.Lookup("Lamp")
	if !ok || d.Host() != "h2" {
		t.Errorf("Lookup(Lamp) = %v, want exact match on h2", d)
	}
}

func TestRegistry_Presets(t *testing.T) {
	reg, _ := testRegistry(t)

	want := []string{"Custom", "Evening", "FullOff"}
	if got := reg.PresetNames(); !slices.Equal(got, want) {
		t.Errorf("PresetNames() = %v, want %v", got, want)
	}

	p, ok := reg.LookupPreset("evening")
	if !ok || p.Name != "Evening" {
		t.Errorf("LookupPreset(evening) = %v, %v", p, ok)
	}
	if _, ok := reg.LookupPreset("Party"); ok {
		t.Error("LookupPreset(Party) found a preset")
	}
	if reg.CurrentPreset() != PresetCustom {
		t.Errorf("CurrentPreset() = %q, want Custom", reg.CurrentPreset())
	}
}

func TestRegistry_RoomsAndTags(t *testing.T) {
	reg, _ := testRegistry(t)

	if got := reg.Rooms(); !slices.Equal(got, []string{"bedroom", "office"}) {
		t.Errorf("Rooms() = %v", got)
	}

	lights := reg.WithTag("LIGHTS")
	if len(lights) != 1 || lights[0].Name() != "Lamp" {
		t.Errorf("WithTag(LIGHTS) = %v", lights)
	}
	if got := reg.WithTag("missing"); len(got) != 0 {
		t.Errorf("WithTag(missing) = %v, want empty", got)
	}

	names := make([]string, 0)
	for _, s := range reg.Snapshots() {
		names = append(names, s.Name)
	}
	if !slices.Equal(names, []string{"Fan", "Heater", "Lamp"}) {
		t.Errorf("Snapshots() order = %v", names)
	}
}

func TestRegistry_DuplicateNamesFirstWins(t *testing.T) {
	net := kasatest.NewNetwork()
	reg := NewRegistry([]Relay{
		newPlug(t, net, "h1", "Lamp", ""),
		newPlug(t, net, "h2", "Lamp", ""),
	}, nil)

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if d, _ := reg.Lookup("Lamp"); d.Host() != "h1" {
		t.Errorf("Lookup(Lamp).Host() = %s, want h1", d.Host())
	}
}

func TestRegistry_EqualAndReplace(t *testing.T) {
	a, net := testRegistry(t)
	b, _ := testRegistry(t)

	lamp, _ := a.Lookup("Lamp")
	if _, err := lamp.TurnOn(context.Background()); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	a.SetCurrentPreset("Evening")

	if !a.Equal(b) {
		t.Error("Equal() = false for registries differing only in status and marker")
	}

	c := NewRegistry(append(a.Devices(), newPlug(t, net, "10.0.0.4", "Kettle", "kitchen")), a.Presets())
	if a.Equal(c) {
		t.Error("Equal() = true with an extra relay")
	}

	d := NewRegistry(a.Devices(), append(ReservedPresets(), Preset{Name: "Evening", Relays: map[string]bool{"Lamp": false}}))
	if a.Equal(d) {
		t.Error("Equal() = true with a changed preset")
	}

	a.Replace(c)
	if a.Len() != 4 {
		t.Errorf("Len() after Replace = %d, want 4", a.Len())
	}
	if a.CurrentPreset() != "Evening" {
		t.Errorf("CurrentPreset() after Replace = %q, want Evening", a.CurrentPreset())
	}

	a.Replace(NewRegistry(nil, ReservedPresets()))
	if a.CurrentPreset() != PresetCustom {
		t.Errorf("CurrentPreset() after preset removal = %q, want Custom", a.CurrentPreset())
	}
}

func TestPreset_Desired(t *testing.T) {
	p := Preset{Name: "Evening", Relays: map[string]bool{"Lamp": true, "fan": false}}

	tests := []struct {
		relay string
		want  bool
	}{
		{"Lamp", true},
		{"LAMP", true},
		{"Fan", false},
		{"Heater", false},
	}
	for _, tt := range tests {
		if got := p.Desired(tt.relay); got != tt.want {
			t.Errorf("Desired(%q) = %v, want %v", tt.relay, got, tt.want)
		}
	}
}

func TestPreset_DesiredCaseCollision(t *testing.T) {
	p := Preset{Name: "Odd", Relays: map[string]bool{"LAMP": true, "lamp": false}}

	// Sorted order puts "LAMP" before "lamp".
	for range 100 {
		if got := p.Desired("Lamp"); !got {
			t.Fatalf("Desired(%q) = %v, want true", "Lamp", got)
		}
	}
	if got := p.Desired("lamp"); got {
		t.Errorf("Desired(%q) = %v, want exact key value false", "lamp", got)
	}
}
