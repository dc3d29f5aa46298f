package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/relay-gateway/internal/api"
	"github.com/nerrad567/relay-gateway/internal/audit"
	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
	"github.com/nerrad567/relay-gateway/internal/device"
	"github.com/nerrad567/relay-gateway/internal/dispatch"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/config"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/database"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/relay-gateway/internal/panel"
	"github.com/nerrad567/relay-gateway/internal/provider"
	"github.com/nerrad567/relay-gateway/migrations"
)

// source is a config provider that can describe itself for /health.
type source interface {
	Load(ctx context.Context) (*device.Registry, error)
	Source() string
}

// run is the gateway's lifetime, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting relay gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("gateway_id", cfg.Gateway.ID)
	log.Info("configuration loaded", "path", configPath, "source", cfg.Source.Kind)

	transport := kasa.NewClient(kasa.ClientConfig{
		Port:    cfg.Relays.Port,
		Timeout: cfg.RelayTimeout(),
	})
	transport.SetLogger(log.With("component", "kasa"))

	var db *database.DB
	if cfg.Source.Kind == config.SourceSQLite || cfg.Audit.Enabled {
		db, err = openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	builder := provider.NewBuilder(transport, cfg.Relays.ProbeConcurrency, log.With("component", "provider"))
	src, closeSource, err := openSource(ctx, cfg, db, builder, log)
	if err != nil {
		return err
	}
	defer closeSource()

	registry, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading relay configuration from %s: %w", src.Source(), err)
	}
	log.Info("relay registry loaded",
		"source", src.Source(),
		"relays", registry.Len(),
		"presets", len(registry.PresetNames()),
	)

	worker := dispatch.New(src, registry, dispatch.Config{
		QueueSize: cfg.Worker.QueueSize,
		Logger:    log.With("component", "dispatch"),
	})

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"prefix", mqttClient.Topics().Prefix,
		)
	} else {
		log.Info("MQTT disabled")
	}

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Metrics:    cfg.Metrics,
		Logger:     log.With("component", "api"),
		Dispatcher: worker,
		Source:     src.Source(),
		Version:    version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if cfg.API.Panel.Enabled {
		deps.Panel = panel.Handler(cfg.API.Panel.Dir)
	}
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		history := audit.NewSQLiteRepository(db)
		recorder = audit.NewRecorder(history, cfg.AuditRetention(), log.With("component", "audit"))
		deps.History = history
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Observers must be registered before the worker starts.
	worker.AddObserver(server.Hub())
	if m := server.Metrics(); m != nil {
		m.SetDevices(registry.Len())
		worker.AddObserver(m)
	}
	if recorder != nil {
		worker.AddObserver(recorder)
	}
	var bridge *api.MQTTBridge
	if mqttClient != nil {
		bridge = api.NewMQTTBridge(mqttClient, worker, log.With("component", "mqtt-bridge"), time.Duration(cfg.API.Timeouts.Request)*time.Second)
		worker.AddObserver(bridge)
		// Republish everything after a reconnect.
		mqttClient.SetOnConnect(bridge.Resync)
	}

	var scheduler *dispatch.Scheduler
	if cfg.Refresh.Auto {
		scheduler, err = dispatch.NewScheduler(worker, cfg.RefreshInterval(), log.With("component", "scheduler"))
		if err != nil {
			return fmt.Errorf("creating refresh scheduler: %w", err)
		}
	}

	if err := server.Start(ctx); err != nil {
		worker.Close()
		return fmt.Errorf("starting API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		server.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})

	if scheduler != nil {
		scheduler.Start()
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}
	if recorder != nil {
		g.Go(func() error {
			return recorder.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())
	err = g.Wait()
	worker.Close()
	if err != nil {
		return fmt.Errorf("gateway stopped: %w", err)
	}

	log.Info("relay gateway stopped")
	return nil
}

// openSource builds the configured provider. db is the already opened
// gateway database for the sqlite source. The returned func releases any
// connection openSource made and is safe to call when nothing was opened.
func openSource(ctx context.Context, cfg *config.Config, db *database.DB, builder *provider.Builder, log *logging.Logger) (source, func(), error) {
	switch cfg.Source.Kind {
	case config.SourceSQLite:
		return provider.NewSQLiteProvider(db, builder), func() {}, nil

	case config.SourceRedis:
		client, err := provider.OpenRedis(ctx, provider.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("connecting to Redis: %w", err)
		}
		log.Info("redis connected", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return provider.NewRedisProvider(client, cfg.Redis.Prefix, builder), func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}, nil

	default:
		return provider.NewLocalProvider(cfg.Source.Path, builder), func() {}, nil
	}
}

// openDatabase opens the gateway database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}
