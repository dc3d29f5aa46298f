package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/relay-gateway/internal/device"
)

// LocalProvider loads the registry from a JSON or YAML file.
// The file is re-read on every Load, so edits apply on the next refresh.
type LocalProvider struct {
	path    string
	builder *Builder
}

// NewLocalProvider creates a provider for the file at path.
func NewLocalProvider(path string, builder *Builder) *LocalProvider {
	return &LocalProvider{path: path, builder: builder}
}

// Load reads the file and builds a probed registry.
func (p *LocalProvider) Load(ctx context.Context) (*device.Registry, error) {
	doc, err := ReadDocument(p.path)
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, doc)
}

// Source describes the provider for health output.
func (p *LocalProvider) Source() string {
	return "local:" + p.path
}

// ReadDocument reads and decodes a document file.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted config
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading %s: %w", ErrInvalidSource, path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
