package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/relay-gateway/internal/device"
)

// DefaultRedisPrefix namespaces the document collections.
const DefaultRedisPrefix = "HomeConfig"

// RedisOptions configures the remote document store connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// OpenRedis connects to Redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: redis %s: %w", ErrInvalidSource, opts.Addr, err)
	}
	return client, nil
}

// RedisStore is the subset of the go-redis API the provider uses.
// *redis.Client satisfies it.
type RedisStore interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisProvider loads the registry from two Redis hashes of JSON documents:
// <prefix>:Relays (field = position) and <prefix>:Presets (field = name).
type RedisProvider struct {
	store   RedisStore
	prefix  string
	builder *Builder
}

// NewRedisProvider creates a provider. An empty prefix uses HomeConfig.
func NewRedisProvider(store RedisStore, prefix string, builder *Builder) *RedisProvider {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisProvider{store: store, prefix: prefix, builder: builder}
}

func (p *RedisProvider) relaysKey() string  { return p.prefix + ":Relays" }
func (p *RedisProvider) presetsKey() string { return p.prefix + ":Presets" }

// Load reads both collections and builds a probed registry.
func (p *RedisProvider) Load(ctx context.Context) (*device.Registry, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, doc)
}

// Source describes the provider for health output.
func (p *RedisProvider) Source() string {
	return "redis:" + p.prefix
}

// Document returns the stored configuration, relays ordered by field.
func (p *RedisProvider) Document(ctx context.Context) (Document, error) {
	relays, err := readHash[RelayDoc](ctx, p.store, p.relaysKey())
	if err != nil {
		return Document{}, err
	}
	presets, err := readHash[device.Preset](ctx, p.store, p.presetsKey())
	if err != nil {
		return Document{}, err
	}
	return Document{Relays: relays, Presets: presets}, nil
}

// Seed replaces both collections with doc.
func (p *RedisProvider) Seed(ctx context.Context, doc Document) error {
	if err := p.store.Del(ctx, p.relaysKey(), p.presetsKey()).Err(); err != nil {
		return fmt.Errorf("clearing collections: %w", err)
	}
	if len(doc.Relays) > 0 {
		values := make([]any, 0, 2*len(doc.Relays))
		for i, r := range doc.Relays {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding relay %s: %w", r.Label(), err)
			}
			values = append(values, fmt.Sprintf("%04d", i), string(data))
		}
		if err := p.store.HSet(ctx, p.relaysKey(), values...).Err(); err != nil {
			return fmt.Errorf("writing relays: %w", err)
		}
	}
	if len(doc.Presets) > 0 {
		values := make([]any, 0, 2*len(doc.Presets))
		for _, preset := range doc.Presets {
			data, err := json.Marshal(preset)
			if err != nil {
				return fmt.Errorf("encoding preset %s: %w", preset.Name, err)
			}
			values = append(values, preset.Name, string(data))
		}
		if err := p.store.HSet(ctx, p.presetsKey(), values...).Err(); err != nil {
			return fmt.Errorf("writing presets: %w", err)
		}
	}
	return nil
}

// readHash decodes every field of a hash, ordered by field name.
// A missing key reads as an empty collection.
func readHash[T any](ctx context.Context, store RedisStore, key string) ([]T, error) {
	fields, err := store.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidSource, key, err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		var v T
		if err := json.Unmarshal([]byte(fields[name]), &v); err != nil {
			return nil, fmt.Errorf("%w: decoding %s[%s]: %w", ErrInvalidSource, key, name, err)
		}
		out = append(out, v)
	}
	return out, nil
}
