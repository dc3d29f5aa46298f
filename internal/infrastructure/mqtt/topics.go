package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "relaygw"

// Topics builds the gateway's MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("home/relays")
//	topics.RelayState("Lamp")
//	// Returns: "home/relays/relay/Lamp/state"
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder. Leading and trailing slashes are trimmed
// from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// RelayState returns the retained state topic for a relay.
//
// Example: relaygw/relay/Lamp/state
func (t Topics) RelayState(name string) string {
	return fmt.Sprintf("%s/relay/%s/state", t.Prefix, name)
}

// RelaySet returns the command topic for a relay.
//
// Example: relaygw/relay/Lamp/set
func (t Topics) RelaySet(name string) string {
	return fmt.Sprintf("%s/relay/%s/set", t.Prefix, name)
}

// AllRelaySets returns a pattern matching every relay command topic.
//
// Pattern: relaygw/relay/+/set
func (t Topics) AllRelaySets() string {
	return fmt.Sprintf("%s/relay/+/set", t.Prefix)
}

// PresetSet returns the preset activation topic. The payload is the preset name.
//
// Example: relaygw/preset/set
func (t Topics) PresetSet() string {
	return fmt.Sprintf("%s/preset/set", t.Prefix)
}

// Status returns the retained system status topic.
//
// Example: relaygw/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.Prefix)
}

// GatewayOnline returns the retained presence topic, also used for the LWT.
//
// Example: relaygw/gateway/online
func (t Topics) GatewayOnline() string {
	return fmt.Sprintf("%s/gateway/online", t.Prefix)
}

// RelayFromSetTopic extracts the relay name from a relay command topic.
// It reports false when topic is not of the form <prefix>/relay/<name>/set.
func (t Topics) RelayFromSetTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/relay/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
