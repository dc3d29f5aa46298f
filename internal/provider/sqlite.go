package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/relay-gateway/internal/device"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/database"
)

// SQLiteProvider loads the registry from relay and preset documents held
// in the gateway's SQLite store.
type SQLiteProvider struct {
	db      *database.DB
	builder *Builder
}

// NewSQLiteProvider creates a provider over a migrated database.
func NewSQLiteProvider(db *database.DB, builder *Builder) *SQLiteProvider {
	return &SQLiteProvider{db: db, builder: builder}
}

// Load reads the stored documents and builds a probed registry.
func (p *SQLiteProvider) Load(ctx context.Context) (*device.Registry, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, doc)
}

// Source describes the provider for health output.
func (p *SQLiteProvider) Source() string {
	return "sqlite:" + p.db.Path()
}

// Document returns the stored configuration. Relays keep their import order.
func (p *SQLiteProvider) Document(ctx context.Context) (Document, error) {
	var doc Document

	relays, err := queryDocs[RelayDoc](ctx, p.db, "SELECT doc FROM relays ORDER BY position")
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading relays: %w", ErrInvalidSource, err)
	}
	doc.Relays = relays

	presets, err := queryDocs[device.Preset](ctx, p.db, "SELECT doc FROM presets ORDER BY name")
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading presets: %w", ErrInvalidSource, err)
	}
	doc.Presets = presets

	return doc, nil
}

// Seed replaces the stored configuration with doc in one transaction.
func (p *SQLiteProvider) Seed(ctx context.Context, doc Document) error {
	return p.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM relays"); err != nil {
			return fmt.Errorf("clearing relays: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM presets"); err != nil {
			return fmt.Errorf("clearing presets: %w", err)
		}
		for i, r := range doc.Relays {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding relay %s: %w", r.Label(), err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO relays (position, doc) VALUES (?, ?)", i, string(data)); err != nil {
				return fmt.Errorf("inserting relay %s: %w", r.Label(), err)
			}
		}
		for _, preset := range doc.Presets {
			data, err := json.Marshal(preset)
			if err != nil {
				return fmt.Errorf("encoding preset %s: %w", preset.Name, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO presets (name, doc) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET doc = excluded.doc",
				preset.Name, string(data),
			); err != nil {
				return fmt.Errorf("inserting preset %s: %w", preset.Name, err)
			}
		}
		return nil
	})
}

func queryDocs[T any](ctx context.Context, db *database.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
