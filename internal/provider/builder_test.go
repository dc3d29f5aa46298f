package provider

import (
	"context"
	"slices"
	"testing"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa/kasatest"
	"github.com/nerrad567/relay-gateway/internal/device"
)

func testNetwork() *kasatest.Network {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", true)
	net.AddPlug("10.0.0.2", false)
	net.AddPlug("10.0.0.3", false)
	net.SetUnreachable("10.0.0.3", true)
	net.AddStrip("10.0.0.9", "STRIP00", "STRIP01")
	return net
}

func testDocument() Document {
	return Document{
		Relays: []RelayDoc{
			{Type: "KasaPlug", IP: "10.0.0.1", Name: "Lamp", Room: "office", Tags: []string{"lights"}},
			{Type: "KasaPlug", IP: "10.0.0.2", Name: "Fan", Room: "bedroom"},
			{Type: "KasaPlug", IP: "10.0.0.3", Name: "Offline", Room: "garage"},
			{Type: "KasaMultiPlug", IP: "10.0.0.9", Names: []string{"K1", "K2", "K3"}, Room: "kitchen"},
			{Type: "Toaster", IP: "10.0.0.5", Name: "Mystery"},
			{Type: "KasaPlug", IP: "10.0.0.2", Name: "Lamp", Room: "hall"},
		},
		Presets: []device.Preset{
			{Name: "Evening", Enabled: true, Relays: map[string]bool{"Lamp": true}},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	net := testNetwork()
	b := NewBuilder(net, 2, nil)

	reg, err := b.Build(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var names []string
	for _, d := range reg.Devices() {
		names = append(names, d.Name())
	}
	want := []string{"Fan", "K1", "K2", "Lamp"}
	if !slices.Equal(names, want) {
		t.Errorf("relays = %v, want %v", names, want)
	}

	lamp, _ := reg.Lookup("Lamp")
	if lamp.Room() != "office" {
		t.Errorf("Lamp room = %q, first entry should win", lamp.Room())
	}
	if !lamp.Status() {
		t.Error("Lamp status not populated by probe")
	}

	k2, _ := reg.Lookup("K2")
	if snap := k2.Snapshot(); snap.ID != "STRIP01" || snap.Type != device.TypeManagedOutlet {
		t.Errorf("K2 snapshot = %+v", snap)
	}

	if got := reg.PresetNames(); !slices.Equal(got, []string{"Custom", "Evening", "FullOff"}) {
		t.Errorf("PresetNames() = %v", got)
	}
	if got := net.Calls("10.0.0.9"); got != 1 {
		t.Errorf("strip probed %d times, want 1", got)
	}
}

func TestBuilder_KeepsUserReservedPreset(t *testing.T) {
	doc := Document{Presets: []device.Preset{{Name: "fulloff", Enabled: true, Relays: map[string]bool{"Lamp": true}}}}

	reg, err := NewBuilder(kasatest.NewNetwork(), 0, nil).Build(context.Background(), doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := reg.PresetNames(); !slices.Equal(got, []string{"Custom", "fulloff"}) {
		t.Errorf("PresetNames() = %v, want [Custom fulloff]", got)
	}
}

func TestBuilder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewBuilder(testNetwork(), 0, nil).Build(ctx, testDocument()); err == nil {
		t.Error("Build() expected error for cancelled context, got nil")
	}
}

func TestBuilder_RebuildIsEqual(t *testing.T) {
	net := testNetwork()
	b := NewBuilder(net, 4, nil)

	first, err := b.Build(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	net.SetState("10.0.0.1", "", false)
	second, err := b.Build(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !first.Equal(second) {
		t.Error("rebuilt registry not Equal although only status changed")
	}
}
