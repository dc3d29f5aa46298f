package provider

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/relay-gateway/internal/device"
)

// Document is the configuration shared by every source.
type Document struct {
	Relays  []RelayDoc      `json:"relays" yaml:"relays"`
	Presets []device.Preset `json:"presets" yaml:"presets"`
}

// RelayDoc describes one plug, or one power strip with its outlet names.
type RelayDoc struct {
	Type  string   `json:"type" yaml:"type"`
	IP    string   `json:"ip" yaml:"ip"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Names []string `json:"names,omitempty" yaml:"names,omitempty"`
	Room  string   `json:"room" yaml:"room"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Label identifies the entry in log lines.
func (r RelayDoc) Label() string {
	if r.Name != "" {
		return r.Name
	}
	if len(r.Names) > 0 {
		return strings.Join(r.Names, ",")
	}
	return r.IP
}

// ParseDocument decodes a JSON or YAML document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return doc, nil
}
