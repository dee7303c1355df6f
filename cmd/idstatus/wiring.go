package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"idstatus/internal/distribution"
	"idstatus/internal/identity/handler"
	"idstatus/internal/identity/store"
	"idstatus/internal/notify"
	"idstatus/internal/platform/config"
	"idstatus/internal/platform/kafka/admin"
	"idstatus/internal/platform/kafka/producer"
	"idstatus/internal/platform/postgres"
	"idstatus/internal/platform/redis"
	"idstatus/internal/reconcile"
	"idstatus/internal/resolver"
	"idstatus/internal/routing"
	"idstatus/pkg/platform/circuit"
	"idstatus/pkg/platform/redact"
	"idstatus/pkg/platform/upstream"
)

// identityStore is the union of what the engine and the query API read.
type identityStore interface {
	reconcile.Store
	handler.Store
}

// app holds shared infrastructure. Closers run in reverse order.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	redactor *redact.Hasher
	db       *sql.DB
	store    identityStore
	locker   reconcile.KeyLocker
	redis    *redis.Client
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		redactor: redact.New(cfg.RedactionKey),
	}

	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.store = store.NewPostgres(db)
		a.locker = store.NewPostgresLocker(db, cfg.Reconcile.LockTimeout)
	} else {
		logger.WarnContext(ctx, "postgres not configured, using in-memory identity store")
		a.store = store.NewInMemory()
		a.locker = reconcile.NewShardedLocker(cfg.Reconcile.LockShards, cfg.Reconcile.LockTimeout)
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// upstreamClient builds a breaker-guarded HTTP client for one dependency.
func (a *app) upstreamClient(name string, cfg config.HTTPClientConfig) (*upstream.Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s base URL is required", name)
	}
	breaker := circuit.New(name,
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	return upstream.NewClient(name, cfg.BaseURL,
		upstream.WithTimeout(cfg.Timeout),
		upstream.WithBreaker(breaker),
		upstream.WithLogger(a.logger),
	), nil
}

func (a *app) engine() (*reconcile.Engine, error) {
	client, err := a.upstreamClient("resolver", a.cfg.Resolver)
	if err != nil {
		return nil, err
	}
	return reconcile.New(a.store, resolver.New(client),
		reconcile.WithLogger(a.logger),
		reconcile.WithMetrics(reconcile.NewMetrics()),
		reconcile.WithLocker(a.locker),
		reconcile.WithResolverTimeout(a.cfg.Reconcile.ResolverTimeout),
		reconcile.WithRedactor(a.redactor),
	), nil
}

func (a *app) classifier() (routing.Classifier, error) {
	client, err := a.upstreamClient("classifier", a.cfg.Classifier.HTTPClientConfig)
	if err != nil {
		return nil, err
	}
	var c routing.Classifier = routing.NewHTTPClassifier(client)
	if a.redis != nil {
		c = routing.NewCachedClassifier(c, routing.NewRedisCache(a.redis.Client, a.cfg.Classifier.CacheTTL), a.logger)
	}
	return c, nil
}

func (a *app) distributor(p *producer.Producer) (*distribution.Service, error) {
	c, err := a.classifier()
	if err != nil {
		return nil, err
	}
	notifier := notify.NewKafkaNotifier(p, notify.Topics{
		OwnerA: a.cfg.Kafka.OwnerATopic,
		OwnerB: a.cfg.Kafka.OwnerBTopic,
	}, notify.WithLogger(a.logger))
	return distribution.New(c, notifier,
		distribution.WithLogger(a.logger),
		distribution.WithMetrics(distribution.NewMetrics()),
		distribution.WithPublishRetry(a.cfg.Kafka.MaxAttempts, a.cfg.Kafka.RetryBackoff),
	), nil
}

// producer connects to Kafka and, when configured, creates missing topics.
func (a *app) producer(ctx context.Context) (*producer.Producer, error) {
	p, err := producer.New(a.cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("kafka unreachable: %w", err)
	}
	if a.cfg.Kafka.EnsureTopics {
		created, err := admin.EnsureTopics(ctx, p.Client(), -1, -1,
			a.cfg.Kafka.InboundTopic,
			a.cfg.Kafka.DeadLetterTopic,
			a.cfg.Kafka.OwnerATopic,
			a.cfg.Kafka.OwnerBTopic,
		)
		if err != nil {
			return nil, err
		}
		if len(created) > 0 {
			a.logger.InfoContext(ctx, "kafka topics created", "topics", created)
		}
	}
	return p, nil
}
