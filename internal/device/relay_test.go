package device

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
	"github.com/nerrad567/relay-gateway/internal/bridges/kasa/kasatest"
)

func newPlug(t *testing.T, net *kasatest.Network, host, name, room string, tags ...string) *SingleOutlet {
	t.Helper()
	p, err := NewSingleOutlet(net, host, name, room, tags)
	if err != nil {
		t.Fatalf("NewSingleOutlet() error = %v", err)
	}
	return p
}

func TestSingleOutlet_TurnOnOff(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)
	plug := newPlug(t, net, "10.0.0.1", "Lamp", "office", "desk")
	ctx := context.Background()

	snap, err := plug.TurnOn(ctx)
	if err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if !snap.Status || !plug.Status() {
		t.Error("status not updated after TurnOn")
	}
	if !net.State("10.0.0.1", "") {
		t.Error("plug still off on the wire")
	}

	snap, err = plug.TurnOff(ctx)
	if err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	if snap.Status || plug.Status() {
		t.Error("status not updated after TurnOff")
	}
}

func TestSingleOutlet_FailureKeepsCache(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)
	plug := newPlug(t, net, "10.0.0.1", "Lamp", "office")
	ctx := context.Background()

	if _, err := plug.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}

	net.SetUnreachable("10.0.0.1", true)
	_, err := plug.TurnOff(ctx)
	if !errors.Is(err, kasa.ErrUnreachable) {
		t.Fatalf("TurnOff() error = %v, want ErrUnreachable", err)
	}
	if !plug.Status() {
		t.Error("cached status changed after failed TurnOff")
	}

	net.SetUnreachable("10.0.0.1", false)
	net.RejectSet("10.0.0.1", true)
	_, err = plug.TurnOff(ctx)
	if !errors.Is(err, kasa.ErrMalformed) {
		t.Fatalf("TurnOff() error = %v, want ErrMalformed", err)
	}
	if !plug.Status() {
		t.Error("cached status changed after rejected TurnOff")
	}
}

func TestSingleOutlet_ToggleUsesCache(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", true)
	plug := newPlug(t, net, "10.0.0.1", "Lamp", "office")

	// Cache says off although the plug is on: Toggle turns it on without querying.
	snap, err := plug.Toggle(context.Background())
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !snap.Status {
		t.Error("Toggle() from cached off should turn on")
	}
	if got := net.Calls("10.0.0.1"); got != 1 {
		t.Errorf("Toggle() made %d exchanges, want 1", got)
	}

	snap, err = plug.Toggle(context.Background())
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if snap.Status {
		t.Error("second Toggle() should turn off")
	}
}

func TestSingleOutlet_GetStatus(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", true)
	plug := newPlug(t, net, "10.0.0.1", "Lamp", "office")

	on, err := plug.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !on || !plug.Status() {
		t.Error("GetStatus() should report and cache on")
	}

	net.SetUnreachable("10.0.0.1", true)
	if err := plug.Connected(context.Background()); !errors.Is(err, kasa.ErrUnreachable) {
		t.Errorf("Connected() error = %v, want ErrUnreachable", err)
	}
}

func TestNewSingleOutlet_Invalid(t *testing.T) {
	if _, err := NewSingleOutlet(kasatest.NewNetwork(), "", "Lamp", "", nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("NewSingleOutlet() error = %v, want ErrInvalidDevice", err)
	}
}

func TestNewManagedOutlets_PositionalZip(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddStrip("10.0.0.9", "ABC00", "ABC01")

	outlets, reported, err := NewManagedOutlets(context.Background(), net, "10.0.0.9", []string{"K1", "K2"}, "kitchen", []string{"counter"})
	if err != nil {
		t.Fatalf("NewManagedOutlets() error = %v", err)
	}
	if reported != 2 {
		t.Errorf("reported children = %d, want 2", reported)
	}
	if len(outlets) != 2 {
		t.Fatalf("got %d outlets, want 2", len(outlets))
	}
	want := []struct{ name, id string }{{"K1", "ABC00"}, {"K2", "ABC01"}}
	for i, w := range want {
		if outlets[i].Name() != w.name || outlets[i].ID() != w.id {
			t.Errorf("outlet %d = (%s, %s), want (%s, %s)", i, outlets[i].Name(), outlets[i].ID(), w.name, w.id)
		}
	}
	if got := net.Calls("10.0.0.9"); got != 1 {
		t.Errorf("host queried %d times, want 1", got)
	}
}

func TestNewManagedOutlets_Mismatch(t *testing.T) {
	tests := []struct {
		name     string
		children []string
		names    []string
		want     int
	}{
		{name: "more names", children: []string{"A"}, names: []string{"K1", "K2"}, want: 1},
		{name: "more children", children: []string{"A", "B", "C"}, names: []string{"K1"}, want: 1},
		{name: "no names", children: []string{"A"}, names: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := kasatest.NewNetwork()
			net.AddStrip("h", tt.children...)
			outlets, _, err := NewManagedOutlets(context.Background(), net, "h", tt.names, "", nil)
			if err != nil {
				t.Fatalf("NewManagedOutlets() error = %v", err)
			}
			if len(outlets) != tt.want {
				t.Errorf("got %d outlets, want %d", len(outlets), tt.want)
			}
		})
	}
}

func TestManagedOutlet_ScopedCommands(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddStrip("10.0.0.9", "C0", "C1")
	outlets, _, err := NewManagedOutlets(context.Background(), net, "10.0.0.9", []string{"K1", "K2"}, "", nil)
	if err != nil {
		t.Fatalf("NewManagedOutlets() error = %v", err)
	}
	ctx := context.Background()

	if _, err := outlets[1].TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if net.State("10.0.0.9", "C0") {
		t.Error("sibling outlet C0 switched on")
	}
	if !net.State("10.0.0.9", "C1") {
		t.Error("outlet C1 not switched on")
	}

	net.SetState("10.0.0.9", "C0", true)
	on, err := outlets[0].GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !on {
		t.Error("GetStatus() did not see external change on C0")
	}
}

func TestManagedOutlet_ChildVanished(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddStrip("h", "C0")
	outlets, _, err := NewManagedOutlets(context.Background(), net, "h", []string{"K1"}, "", nil)
	if err != nil {
		t.Fatalf("NewManagedOutlets() error = %v", err)
	}

	net.AddStrip("h", "OTHER")
	if _, err := outlets[0].GetStatus(context.Background()); !errors.Is(err, kasa.ErrMalformed) {
		t.Errorf("GetStatus() error = %v, want ErrMalformed", err)
	}
}

func TestSnapshot_JSON(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)
	net.AddStrip("10.0.0.9", "C0")
	plug := newPlug(t, net, "10.0.0.1", "Lamp", "office")
	outlets, _, err := NewManagedOutlets(context.Background(), net, "10.0.0.9", []string{"K1"}, "kitchen", []string{"a"})
	if err != nil {
		t.Fatalf("NewManagedOutlets() error = %v", err)
	}

	tests := []struct {
		name  string
		relay Relay
		want  string
	}{
		{
			name:  "single outlet has empty tags and no id",
			relay: plug,
			want:  `{"type":"KasaPlug","ip":"10.0.0.1","name":"Lamp","status":false,"room":"office","tags":[]}`,
		},
		{
			name:  "managed outlet carries id",
			relay: outlets[0],
			want:  `{"type":"KasaMultiPlug","ip":"10.0.0.9","name":"K1","status":false,"room":"kitchen","tags":["a"],"id":"C0"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.relay.Snapshot())
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("snapshot = %s\nwant       %s", data, tt.want)
			}
		})
	}
}

func TestEqual_IgnoresStatus(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)
	a := newPlug(t, net, "10.0.0.1", "Lamp", "office", "x")
	b := newPlug(t, net, "10.0.0.1", "Lamp", "office", "x")

	if _, err := a.TurnOn(context.Background()); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if !Equal(a, b) {
		t.Error("Equal() = false for relays differing only in status")
	}

	c := newPlug(t, net, "10.0.0.1", "Lamp", "bedroom", "x")
	if Equal(a, c) {
		t.Error("Equal() = true for relays in different rooms")
	}
}

func TestEqual_TagOrder(t *testing.T) {
	net := kasatest.NewNetwork()
	net.AddPlug("10.0.0.1", false)

	tests := []struct {
		name  string
		left  []string
		right []string
		want  bool
	}{
		{name: "same order", left: []string{"lights", "night"}, right: []string{"lights", "night"}, want: true},
		{name: "reordered", left: []string{"lights", "night"}, right: []string{"night", "lights"}, want: true},
		{name: "extra tag", left: []string{"lights"}, right: []string{"night", "lights"}, want: false},
		{name: "renamed tag", left: []string{"lights", "night"}, right: []string{"lights", "day"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newPlug(t, net, "10.0.0.1", "Lamp", "office", tt.left...)
			b := newPlug(t, net, "10.0.0.1", "Lamp", "office", tt.right...)
			if got := Equal(a, b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasTag(t *testing.T) {
	net := kasatest.NewNetwork()
	plug := newPlug(t, net, "h", "Lamp", "", " Lights ", "lights", "", "night")

	if got := plug.Tags(); len(got) != 2 || got[0] != "Lights" || got[1] != "night" {
		t.Errorf("Tags() = %v, want [Lights night]", got)
	}
	if !HasTag(plug, "LIGHTS") {
		t.Error("HasTag() should match case-insensitively")
	}
	if HasTag(plug, "fans") {
		t.Error("HasTag() matched absent tag")
	}
}
