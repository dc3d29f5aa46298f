// Package kasatest provides an in-memory relay network for tests.
package kasatest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
)

// Network simulates plugs and power strips keyed by host.
// It implements kasa.Transport and is safe for concurrent use.
type Network struct {
	mu      sync.Mutex
	devices map[string]*fakeDevice
	calls   map[string]int
}

type fakeDevice struct {
	on          bool
	children    []kasa.Child
	unreachable bool
	rejectSet   bool
}

// Ensure Network implements kasa.Transport.
var _ kasa.Transport = (*Network)(nil)

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		devices: make(map[string]*fakeDevice),
		calls:   make(map[string]int),
	}
}

// AddPlug registers a single-outlet plug.
func (n *Network) AddPlug(host string, on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.devices[host] = &fakeDevice{on: on}
}

// AddStrip registers a power strip whose children are reported in the given id order.
func (n *Network) AddStrip(host string, childIDs ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d := &fakeDevice{}
	for _, id := range childIDs {
		d.children = append(d.children, kasa.Child{ID: id, Alias: id})
	}
	n.devices[host] = d
}

// SetUnreachable makes every exchange with host fail with kasa.ErrUnreachable.
func (n *Network) SetUnreachable(host string, unreachable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if d, ok := n.devices[host]; ok {
		d.unreachable = unreachable
	}
}

// RejectSet makes host answer set_relay_state with a non-zero err_code.
func (n *Network) RejectSet(host string, reject bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if d, ok := n.devices[host]; ok {
		d.rejectSet = reject
	}
}

// SetState changes relay state behind the gateway's back.
// childID is empty for plugs.
func (n *Network) SetState(host, childID string, on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.devices[host]
	if !ok {
		return
	}
	if childID == "" {
		d.on = on
		return
	}
	for i := range d.children {
		if d.children[i].ID == childID {
			d.children[i].State = boolToState(on)
		}
	}
}

// State returns the simulated relay state. childID is empty for plugs.
func (n *Network) State(host, childID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.devices[host]
	if !ok {
		return false
	}
	if childID == "" {
		return d.on
	}
	for _, c := range d.children {
		if c.ID == childID {
			return c.State == 1
		}
	}
	return false
}

// Calls returns the number of exchanges made with host.
func (n *Network) Calls(host string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[host]
}

// Send decodes a plaintext request and returns the simulated reply.
func (n *Network) Send(ctx context.Context, host string, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", kasa.ErrUnreachable, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[host]++

	d, ok := n.devices[host]
	if !ok || d.unreachable {
		return nil, fmt.Errorf("%w: dial %s: connection refused", kasa.ErrUnreachable, host)
	}

	var req struct {
		Context struct {
			ChildIDs []string `json:"child_ids"`
		} `json:"context"`
		System struct {
			GetSysInfo    *struct{} `json:"get_sysinfo"`
			SetRelayState *struct {
				State int `json:"state"`
			} `json:"set_relay_state"`
		} `json:"system"`
	}
	if err := json.Unmarshal(request, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", kasa.ErrMalformed, err)
	}

	switch {
	case req.System.SetRelayState != nil:
		if d.rejectSet {
			return []byte(`{"system":{"set_relay_state":{"err_code":-1,"err_msg":"rejected"}}}`), nil
		}
		state := req.System.SetRelayState.State
		if len(req.Context.ChildIDs) == 0 {
			d.on = state == 1
		}
		for _, id := range req.Context.ChildIDs {
			for i := range d.children {
				if d.children[i].ID == id {
					d.children[i].State = state
				}
			}
		}
		return []byte(`{"system":{"set_relay_state":{"err_code":0}}}`), nil

	case req.System.GetSysInfo != nil:
		var resp kasa.SysInfoResponse
		info := &resp.System.GetSysInfo
		info.Alias = host
		info.RelayState = boolToState(d.on)
		info.Children = append([]kasa.Child(nil), d.children...)
		info.ChildNum = len(d.children)
		return json.Marshal(resp)
	}

	return []byte(`{"system":{"err_code":-1}}`), nil
}

// Query marshals request, calls Send and unmarshals into response.
func (n *Network) Query(ctx context.Context, host string, request, response any) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	reply, err := n.Send(ctx, host, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, response); err != nil {
		return fmt.Errorf("%w: %w", kasa.ErrMalformed, err)
	}
	return nil
}

func boolToState(on bool) int {
	if on {
		return 1
	}
	return 0
}
