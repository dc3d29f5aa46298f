package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
)

// ManagedOutlet is one child outlet of a power strip. Commands are scoped
// to the child by its id; several ManagedOutlets share one host.
type ManagedOutlet struct {
	transport kasa.Transport
	host      string
	id        string
	name      string
	room      string
	tags      []string
	status    bool
}

// Ensure ManagedOutlet implements Relay.
var _ Relay = (*ManagedOutlet)(nil)

// NewManagedOutlets queries host once and pairs its children with names by
// position: the first reported child gets names[0], and so on.
//
// The result has min(len(children), len(names)) entries. Surplus names or
// children are dropped; callers compare the lengths to log the mismatch.
// Initial status is taken from the same query.
func NewManagedOutlets(ctx context.Context, transport kasa.Transport, host string, names []string, room string, tags []string) ([]*ManagedOutlet, int, error) {
	if host == "" {
		return nil, 0, fmt.Errorf("%w: managed outlet needs a host", ErrInvalidDevice)
	}
	var resp kasa.SysInfoResponse
	if err := transport.Query(ctx, host, kasa.GetSysInfoRequest(), &resp); err != nil {
		return nil, 0, fmt.Errorf("power strip %s: %w", host, err)
	}
	children := resp.System.GetSysInfo.Children

	n := min(len(children), len(names))
	outlets := make([]*ManagedOutlet, 0, n)
	for i := range n {
		outlets = append(outlets, &ManagedOutlet{
			transport: transport,
			host:      host,
			id:        children[i].ID,
			name:      names[i],
			room:      room,
			tags:      normaliseTags(tags),
			status:    children[i].On(),
		})
	}
	return outlets, len(children), nil
}

func (m *ManagedOutlet) Name() string   { return m.name }
func (m *ManagedOutlet) Room() string   { return m.room }
func (m *ManagedOutlet) Tags() []string { return m.tags }
func (m *ManagedOutlet) Host() string   { return m.host }
func (m *ManagedOutlet) Status() bool   { return m.status }

// ID returns the child id reported by the host.
func (m *ManagedOutlet) ID() string { return m.id }

// Connected queries the host and refreshes the cached status.
func (m *ManagedOutlet) Connected(ctx context.Context) error {
	_, err := m.GetStatus(ctx)
	return err
}

// GetStatus queries the host and reads this child's state.
func (m *ManagedOutlet) GetStatus(ctx context.Context) (bool, error) {
	var resp kasa.SysInfoResponse
	if err := m.transport.Query(ctx, m.host, kasa.GetSysInfoRequest(), &resp); err != nil {
		return m.status, fmt.Errorf("relay %s: %w", m.name, err)
	}
	child, ok := resp.System.GetSysInfo.Child(m.id)
	if !ok {
		return m.status, fmt.Errorf("relay %s: %w: host %s no longer reports child %s", m.name, kasa.ErrMalformed, m.host, m.id)
	}
	m.status = child.On()
	return m.status, nil
}

// TurnOn closes this child's relay.
func (m *ManagedOutlet) TurnOn(ctx context.Context) (Snapshot, error) {
	return m.set(ctx, true)
}

// TurnOff opens this child's relay.
func (m *ManagedOutlet) TurnOff(ctx context.Context) (Snapshot, error) {
	return m.set(ctx, false)
}

// Toggle inverts the cached status.
func (m *ManagedOutlet) Toggle(ctx context.Context) (Snapshot, error) {
	if m.status {
		return m.TurnOff(ctx)
	}
	return m.TurnOn(ctx)
}

func (m *ManagedOutlet) set(ctx context.Context, on bool) (Snapshot, error) {
	if err := setRelayState(ctx, m.transport, m.host, on, m.id); err != nil {
		return m.Snapshot(), fmt.Errorf("relay %s: %w", m.name, err)
	}
	m.status = on
	return m.Snapshot(), nil
}

// Snapshot returns the status-report view including the child id.
func (m *ManagedOutlet) Snapshot() Snapshot {
	return Snapshot{
		Type:   TypeManagedOutlet,
		IP:     m.host,
		Name:   m.name,
		Status: m.status,
		Room:   m.room,
		Tags:   append([]string{}, m.tags...),
		ID:     m.id,
	}
}
