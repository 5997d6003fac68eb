// Package app assembles the importer, its stores and the delegation
// transport from configuration. Both the server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sheetport/internal/character/gate"
	"sheetport/internal/character/models"
	"sheetport/internal/character/sanitize"
	"sheetport/internal/character/store"
	"sheetport/internal/delegation"
	"sheetport/internal/delegation/channel"
	delegationmetrics "sheetport/internal/delegation/metrics"
	"sheetport/internal/importer"
	importmetrics "sheetport/internal/importer/metrics"
	jwttoken "sheetport/internal/jwt_token"
	"sheetport/internal/platform/config"
	"sheetport/internal/platform/kafka"
	"sheetport/internal/platform/postgres"
	platformredis "sheetport/internal/platform/redis"
	ratelimitmetrics "sheetport/internal/ratelimit/metrics"
	ratelimit "sheetport/internal/ratelimit/middleware"
	"sheetport/internal/ratelimit/store/bucket"
	httptransport "sheetport/internal/transport/http"
	"sheetport/pkg/platform/audit"
	"sheetport/pkg/platform/audit/publisher"
	auditmemory "sheetport/pkg/platform/audit/store/memory"
	auditpostgres "sheetport/pkg/platform/audit/store/postgres"
)

const auditBuffer = 256

// CharacterStore is the persistence the importer and handlers need.
type CharacterStore interface {
	Create(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error)
	Get(ctx context.Context, id string) (*models.Character, error)
	List(ctx context.Context) ([]models.Character, error)
	CreateFolder(ctx context.Context, name string) (*models.Folder, error)
	FolderExists(ctx context.Context, id string) bool
}

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Registry   *prometheus.Registry
	Store      CharacterStore
	Audit      *publisher.Publisher
	Importer   *importer.Service
	Channel    delegation.Channel
	Delegation *delegation.Client
	Peer       *delegation.Peer
	JWT        *jwttoken.JWTService
	Redis      *platformredis.Client
	Health     []httptransport.HealthCheck
	// ImportThrottle limits imports per actor; nil when disabled.
	ImportThrottle func(http.Handler) http.Handler

	closers []func() error
}

// Build wires every component described by cfg. On error, anything already
// opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		JWT:      jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditStore, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}
	a.Audit = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(logger),
	)
	a.closers = append(a.closers, func() error { a.Audit.Close(); return nil })

	if err := a.buildRedis(ctx); err != nil {
		return nil, err
	}
	ch, err := a.buildChannel(ctx)
	if err != nil {
		return nil, err
	}
	a.Channel = ch

	sanitizer := sanitize.New(a.Store)
	dm := delegationmetrics.New(a.Registry)
	a.Delegation = delegation.NewClient(ch, a.Store,
		delegation.WithTimeout(cfg.Delegation.Timeout),
		delegation.WithLogger(logger),
		delegation.WithMetrics(dm),
	)
	a.closers = append(a.closers, a.Delegation.Close)

	if cfg.Delegation.PeerEnabled {
		local := models.Actor{ID: cfg.Delegation.PeerActorID, Role: models.RoleGM}
		a.Peer = delegation.NewPeer(ch, a.Store, sanitizer, local,
			delegation.WithPeerLogger(logger),
			delegation.WithPeerMetrics(dm),
			delegation.WithAuditPublisher(a.Audit),
		)
	}

	a.buildThrottle()

	g := gate.New(gate.StaticPolicy{AllowPlayers: cfg.Importer.PlayersMayCreate}, gate.WithLogger(logger))
	a.Importer, err = importer.New(a.Store, sanitizer, g,
		importer.WithLogger(logger),
		importer.WithMetrics(importmetrics.New(a.Registry)),
		importer.WithAuditPublisher(a.Audit),
		importer.WithDelegator(a.Delegation),
		importer.WithWorldSystem(cfg.Importer.WorldSystem),
	)
	if err != nil {
		return nil, fmt.Errorf("build importer: %w", err)
	}
	return a, nil
}

func (a *App) buildStores(ctx context.Context) (audit.Store, error) {
	db, err := postgres.Open(ctx, a.Config.Postgres)
	if err != nil {
		return nil, err
	}
	if db == nil {
		a.Logger.InfoContext(ctx, "no database configured, using in-memory stores")
		a.Store = store.NewMemory()
		return auditmemory.NewInMemoryStore(), nil
	}
	a.closers = append(a.closers, db.Close)
	a.Health = append(a.Health, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})

	characters := store.NewPostgres(db)
	if err := characters.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate characters: %w", err)
	}
	auditStore := auditpostgres.New(db)
	if err := auditStore.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate audit: %w", err)
	}
	a.Store = characters
	return auditStore, nil
}

func (a *App) buildRedis(ctx context.Context) error {
	client, err := platformredis.New(ctx, a.Config.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	a.Health = append(a.Health, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	return nil
}

// buildThrottle shares one budget across servers when Redis is available.
func (a *App) buildThrottle() {
	cfg := a.Config.Importer
	if cfg.RateLimit == 0 {
		return
	}
	var limiter ratelimit.Limiter = bucket.NewInMemoryBucketStore()
	if a.Redis != nil {
		limiter = bucket.NewRedisBucketStore(a.Redis.Client)
	}
	mw := ratelimit.New(limiter, cfg.RateLimit, cfg.RateWindow, a.Logger,
		ratelimit.WithMetrics(ratelimitmetrics.New(a.Registry)),
	)
	a.ImportThrottle = mw.PerActor("import")
}

func (a *App) buildChannel(ctx context.Context) (delegation.Channel, error) {
	cfg := a.Config
	switch cfg.Delegation.Transport {
	case config.TransportRedis:
		return channel.NewRedis(a.Redis.Client,
			channel.WithRedisChannel(cfg.Delegation.Channel),
			channel.WithRedisLogger(a.Logger),
		), nil
	case config.TransportKafka:
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return nil, err
		}
		k, err := channel.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, channel.WithKafkaLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { k.Close(); return nil })
		return k, nil
	default:
		bus := channel.NewBus()
		a.closers = append(a.closers, bus.Close)
		return bus, nil
	}
}

// Start begins listening for delegation replies.
func (a *App) Start(ctx context.Context) error {
	return a.Delegation.Start(ctx)
}

// RunPeer serves delegated creation until ctx is done. It returns at once
// when this process does not act as the GM peer.
func (a *App) RunPeer(ctx context.Context) error {
	if a.Peer == nil {
		return nil
	}
	return a.Peer.Run(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var _ CharacterStore = (*store.Memory)(nil)
var _ CharacterStore = (*store.Postgres)(nil)
