package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/relay-gateway/internal/infrastructure/config"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/relay-gateway/internal/provider"
)

func newImportCmd(configPath *string) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Seed the relay document store from a JSON or YAML file",
		Long: "Replaces every relay and preset in the SQLite database or Redis with\n" +
			"the contents of a local config document. The target defaults to the\n" +
			"configured source when that is redis, and to sqlite otherwise.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(getConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runImport(cmd.Context(), cfg, args[0], target, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "store to seed: sqlite or redis")
	return cmd
}

// seeder is a document store that can be replaced wholesale.
type seeder interface {
	Seed(ctx context.Context, doc provider.Document) error
	Source() string
}

// runImport reads path and replaces the target store's documents with it.
func runImport(ctx context.Context, cfg *config.Config, path, target string, out io.Writer) error {
	doc, err := provider.ReadDocument(path)
	if err != nil {
		return err
	}

	if target == "" {
		target = config.SourceSQLite
		if cfg.Source.Kind == config.SourceRedis {
			target = config.SourceRedis
		}
	}

	log := logging.New(cfg.Logging, version).With("component", "import")
	// Seeding never talks to relays.
	builder := provider.NewBuilder(nil, cfg.Relays.ProbeConcurrency, log)

	var store seeder
	switch target {
	case config.SourceSQLite:
		db, err := openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // read-mostly handle, nothing to flush
		store = provider.NewSQLiteProvider(db, builder)
	case config.SourceRedis:
		client, err := provider.OpenRedis(ctx, provider.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer client.Close() //nolint:errcheck // connection pool teardown
		store = provider.NewRedisProvider(client, cfg.Redis.Prefix, builder)
	default:
		return fmt.Errorf("%w: import target %q must be sqlite or redis", provider.ErrInvalidSource, target)
	}

	if err := store.Seed(ctx, doc); err != nil {
		return fmt.Errorf("seeding %s: %w", store.Source(), err)
	}
	fmt.Fprintf(out, "imported %d relays and %d presets into %s\n", len(doc.Relays), len(doc.Presets), store.Source())
	return nil
}
