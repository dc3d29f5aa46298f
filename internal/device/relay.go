package device

import (
	"context"
	"slices"
	"strings"
)

// Relay types as they appear in configuration documents and snapshots.
const (
	TypeSingleOutlet  = "KasaPlug"
	TypeManagedOutlet = "KasaMultiPlug"
)

// Relay is one controllable outlet.
//
// Mutating operations return the Snapshot taken after the relay
// acknowledged the command. On failure the cached status is unchanged.
type Relay interface {
	Name() string
	Room() string
	Tags() []string
	Host() string

	// Status returns the cached relay state without I/O.
	Status() bool

	// Connected queries the relay and refreshes the cache.
	Connected(ctx context.Context) error

	// GetStatus queries the relay and returns its current state.
	GetStatus(ctx context.Context) (bool, error)

	TurnOn(ctx context.Context) (Snapshot, error)
	TurnOff(ctx context.Context) (Snapshot, error)

	// Toggle flips the relay based on the cached status only.
	Toggle(ctx context.Context) (Snapshot, error)

	// Snapshot returns the serialisable view. It never performs I/O.
	Snapshot() Snapshot
}

// Snapshot is the status-report view of a relay.
type Snapshot struct {
	Type   string   `json:"type"`
	IP     string   `json:"ip"`
	Name   string   `json:"name"`
	Status bool     `json:"status"`
	Room   string   `json:"room"`
	Tags   []string `json:"tags"`
	ID     string   `json:"id,omitempty"`
}

// Equal reports whether two relays describe the same outlet: type, name,
// address, room and tag set. Tag order and the cached status are ignored.
func Equal(a, b Relay) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	sa, sb := a.Snapshot(), b.Snapshot()
	return sa.Type == sb.Type &&
		sa.Name == sb.Name &&
		sa.IP == sb.IP &&
		sa.ID == sb.ID &&
		sa.Room == sb.Room &&
		slices.Equal(sortedTags(sa.Tags), sortedTags(sb.Tags))
}

func sortedTags(tags []string) []string {
	out := slices.Clone(tags)
	slices.Sort(out)
	return out
}

// HasTag reports whether r carries tag, ignoring case.
func HasTag(r Relay, tag string) bool {
	tag = strings.TrimSpace(tag)
	return slices.ContainsFunc(r.Tags(), func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// normaliseTags trims tags and drops blanks and case-insensitive duplicates.
// Order is preserved. The result is never nil.
func normaliseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
