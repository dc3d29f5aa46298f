package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/relay-gateway/internal/device"
)

// Action is an operation applied to one or more relays.
type Action string

const (
	ActionOn          Action = "on"
	ActionOff         Action = "off"
	ActionToggle      Action = "toggle"
	ActionQueryStatus Action = "status"
)

// ParseAction maps a command word to an Action, ignoring case.
// TRUE/ON switch on, FALSE/OFF switch off, SWITCH/TOGGLE flip and STATUS queries.
func ParseAction(word string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(word)) {
	case "TRUE", "ON":
		return ActionOn, nil
	case "FALSE", "OFF":
		return ActionOff, nil
	case "SWITCH", "TOGGLE":
		return ActionToggle, nil
	case "STATUS":
		return ActionQueryStatus, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, word)
	}
}

// Mutates reports whether the action changes relay state.
func (a Action) Mutates() bool {
	return a == ActionOn || a == ActionOff || a == ActionToggle
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a.Mutates() || a == ActionQueryStatus
}

// apply runs a on r and returns the resulting snapshot.
func apply(ctx context.Context, r device.Relay, a Action) (device.Snapshot, error) {
	switch a {
	case ActionOn:
		return r.TurnOn(ctx)
	case ActionOff:
		return r.TurnOff(ctx)
	case ActionToggle:
		return r.Toggle(ctx)
	case ActionQueryStatus:
		if _, err := r.GetStatus(ctx); err != nil {
			return r.Snapshot(), err
		}
		return r.Snapshot(), nil
	default:
		return r.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidAction, a)
	}
}
