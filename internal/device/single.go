package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
)

// SingleOutlet is a standalone smart plug.
type SingleOutlet struct {
	transport kasa.Transport
	host      string
	name      string
	room      string
	tags      []string
	status    bool
}

// Ensure SingleOutlet implements Relay.
var _ Relay = (*SingleOutlet)(nil)

// NewSingleOutlet creates a plug without contacting it.
func NewSingleOutlet(transport kasa.Transport, host, name, room string, tags []string) (*SingleOutlet, error) {
	if host == "" || name == "" {
		return nil, fmt.Errorf("%w: single outlet needs host and name", ErrInvalidDevice)
	}
	return &SingleOutlet{
		transport: transport,
		host:      host,
		name:      name,
		room:      room,
		tags:      normaliseTags(tags),
	}, nil
}

func (s *SingleOutlet) Name() string   { return s.name }
func (s *SingleOutlet) Room() string   { return s.room }
func (s *SingleOutlet) Tags() []string { return s.tags }
func (s *SingleOutlet) Host() string   { return s.host }
func (s *SingleOutlet) Status() bool   { return s.status }

// Connected queries the plug and refreshes the cached status.
func (s *SingleOutlet) Connected(ctx context.Context) error {
	_, err := s.GetStatus(ctx)
	return err
}

// GetStatus queries the plug and returns relay_state == 1.
func (s *SingleOutlet) GetStatus(ctx context.Context) (bool, error) {
	var resp kasa.SysInfoResponse
	if err := s.transport.Query(ctx, s.host, kasa.GetSysInfoRequest(), &resp); err != nil {
		return s.status, fmt.Errorf("relay %s: %w", s.name, err)
	}
	info := resp.System.GetSysInfo
	if info.ErrCode != 0 {
		return s.status, fmt.Errorf("relay %s: %w: get_sysinfo err_code %d", s.name, kasa.ErrMalformed, info.ErrCode)
	}
	s.status = info.On()
	return s.status, nil
}

// TurnOn closes the relay.
func (s *SingleOutlet) TurnOn(ctx context.Context) (Snapshot, error) {
	return s.set(ctx, true)
}

// TurnOff opens the relay.
func (s *SingleOutlet) TurnOff(ctx context.Context) (Snapshot, error) {
	return s.set(ctx, false)
}

// Toggle inverts the cached status.
func (s *SingleOutlet) Toggle(ctx context.Context) (Snapshot, error) {
	if s.status {
		return s.TurnOff(ctx)
	}
	return s.TurnOn(ctx)
}

func (s *SingleOutlet) set(ctx context.Context, on bool) (Snapshot, error) {
	if err := setRelayState(ctx, s.transport, s.host, on); err != nil {
		return s.Snapshot(), fmt.Errorf("relay %s: %w", s.name, err)
	}
	s.status = on
	return s.Snapshot(), nil
}

// Snapshot returns the status-report view.
func (s *SingleOutlet) Snapshot() Snapshot {
	return Snapshot{
		Type:   TypeSingleOutlet,
		IP:     s.host,
		Name:   s.name,
		Status: s.status,
		Room:   s.room,
		Tags:   append([]string{}, s.tags...),
	}
}

// setRelayState sends set_relay_state and checks the acknowledgement.
func setRelayState(ctx context.Context, transport kasa.Transport, host string, on bool, childIDs ...string) error {
	var ack kasa.SetRelayStateResponse
	if err := transport.Query(ctx, host, kasa.SetRelayStateRequest(on, childIDs...), &ack); err != nil {
		return err
	}
	return ack.Err()
}
