package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semcnl/config"
	"github.com/c360studio/semcnl/metrics"
	"github.com/c360studio/semcnl/pipeline"
	"github.com/c360studio/semcnl/registry"
	"github.com/c360studio/semcnl/schema"
	"github.com/c360studio/semcnl/storage"
	"github.com/c360studio/semstreams/natsclient"
)

// graphStream carries published node entities.
const graphStream = "GRAPH"

// App wires the configured store, NATS connection and parse service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsClient     *natsclient.Client

	// Storage
	store   registry.Store
	closers []func() error

	registry *registry.Registry
	metrics  *metrics.Collector
	service  *pipeline.Service
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start connects to NATS when the configuration needs it, opens the
// registry store and builds the parse service.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.NeedsNATS() {
		if err := a.startNATS(ctx); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}
	a.store = store

	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithStrict(a.cfg.Parser.Strict),
	}

	if a.cfg.Parser.SchemaPath != "" {
		sc, err := schema.Load(a.cfg.Parser.SchemaPath)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithSchema(sc))
		a.logger.Debug("Schema loaded", "path", a.cfg.Parser.SchemaPath, "relations", len(sc.RelationNames()))
	}

	if a.cfg.Publish.Enabled {
		if err := a.ensureStream(ctx); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithPublisher(a.natsClient, a.cfg.Publish.Subject))
	}

	a.metrics = metrics.NewCollector("semcnl")
	opts = append(opts, pipeline.WithMetrics(a.metrics))

	a.registry = registry.New(a.store, registry.WithLogger(a.logger))
	a.service = pipeline.New(a.registry, opts...)

	a.logger.Debug("semcnl ready",
		"store", a.cfg.Store.Backend,
		"user", a.cfg.User,
		"strict", a.cfg.Parser.Strict,
		"publish", a.cfg.Publish.Enabled)
	return nil
}

func (a *App) openStore(ctx context.Context) (registry.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := storage.OpenSQLite(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendNATS:
		js, err := a.natsClient.JetStream()
		if err != nil {
			return nil, fmt.Errorf("get JetStream: %w", err)
		}
		return storage.NewKVStore(ctx, js, a.cfg.Store.Bucket)
	default:
		return registry.NewMemoryStore(), nil
	}
}

func (a *App) startNATS(ctx context.Context) error {
	url := a.cfg.NATS.URL
	if url == "" {
		if !a.cfg.NATS.Embedded {
			return errors.New("no NATS url configured and embedded server disabled")
		}
		a.logger.Debug("Starting embedded NATS server")
		ns, err := server.NewServer(&server.Options{
			Port:      -1,
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return errors.New("embedded NATS server failed to start")
		}
		a.embeddedServer = ns
		url = ns.ClientURL()
	}

	a.logger.Debug("Connecting to NATS", "url", url)
	client, err := natsclient.NewClient(url,
		natsclient.WithName("semcnl"),
		natsclient.WithMaxReconnects(5),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("NATS connection failed: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	a.natsClient = client
	return nil
}

// ensureStream makes sure a stream captures the publish subject.
func (a *App) ensureStream(ctx context.Context) error {
	js, err := a.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     graphStream,
		Subjects: []string{a.cfg.Publish.Subject},
		MaxAge:   24 * time.Hour,
		Storage:  jetstream.MemoryStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", graphStream, err)
	}
	return nil
}

// Shutdown closes the store and the NATS connection.
func (a *App) Shutdown(ctx context.Context) {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Failed to close store", "error", err)
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(ctx); err != nil {
			a.logger.Warn("Failed to close NATS client", "error", err)
		}
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
