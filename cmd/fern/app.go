package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/onboarding"
	"github.com/Ramsey-B/fern/pkg/recordstore"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/session"
	"github.com/Ramsey-B/fern/pkg/startup"
)

const (
	depDatabase = "database"
	depRedis    = "redis"
	depGraph    = "graph"
	depKafka    = "kafka"
	depStore    = "recordstore"
)

// app owns the service dependencies shared by the serve and onboard commands.
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	checker *health.Checker

	db       database.DB
	redis    *redis.Client
	graph    *graph.Client
	producer *kafka.Producer

	store    recordstore.Store
	workflow *onboarding.Workflow
}

func newApp(cfg *config.Config, logger ectologger.Logger) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		checker: health.NewChecker(cfg.Version),
	}
	a.register()
	return a
}

func (a *app) register() {
	cfg := a.cfg
	storeRequires := []string{}

	if cfg.StoreBackend == config.StoreBackendPostgres {
		storeRequires = append(storeRequires, depDatabase)
		a.startup.AddDependency(&startup.Dependency{
			Name:    depDatabase,
			StartFn: a.startDatabase,
			StopFn: func(context.Context) error {
				if a.db == nil {
					return nil
				}
				return a.db.Close()
			},
		})
	}

	if cfg.RedisEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name: depRedis,
			StartFn: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, a.logger)
				if err != nil {
					return err
				}
				a.redis = client
				a.checker.AddCheck(depRedis, client.Ping)
				return nil
			},
			StopFn: func(context.Context) error {
				if a.redis == nil {
					return nil
				}
				return a.redis.Close()
			},
		})
	}

	if cfg.GraphEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name: depGraph,
			StartFn: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, a.logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				a.graph = client
				a.checker.AddCheck(depGraph, client.VerifyConnectivity)
				return nil
			},
			StopFn: func(ctx context.Context) error {
				if a.graph == nil {
					return nil
				}
				return a.graph.Close(ctx)
			},
		})
	}

	if cfg.KafkaEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name: depKafka,
			StartFn: func(context.Context) error {
				a.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, a.logger)
				return nil
			},
			StopFn: func(context.Context) error {
				if a.producer == nil {
					return nil
				}
				return a.producer.Close()
			},
		})
	}

	a.startup.AddDependency(&startup.Dependency{
		Name:     depStore,
		Requires: storeRequires,
		StartFn:  a.startStore,
	})
}

func (a *app) startDatabase(ctx context.Context) error {
	cfg := a.cfg
	db, err := database.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN(), database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	if cfg.DatabaseMigrateOnStart {
		if err := migrationService(cfg, a.logger).MigratePostgres(db.Raw().DB, cfg.DatabaseName); err != nil {
			_ = db.Close()
			return err
		}
	}

	a.db = db
	a.checker.AddCheck(depDatabase, db.PingContext)
	return nil
}

func (a *app) startStore(ctx context.Context) error {
	if a.db != nil {
		a.store = recordstore.NewPostgres(a.db, a.logger)
		return nil
	}

	mem := recordstore.NewMemory()
	ids, err := recordstore.Seed(ctx, mem, recordstore.DemoBusinesses)
	if err != nil {
		return fmt.Errorf("failed to seed memory store: %w", err)
	}
	a.logger.WithContext(ctx).WithField("seeded", len(ids)).Info("Using in-memory record store")
	a.store = mem
	return nil
}

// start brings up every dependency and builds the onboarding workflow.
func (a *app) start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	dir, err := a.directory()
	if err != nil {
		return err
	}

	var resolverOpts []resolver.Option
	var workflowOpts []onboarding.Option
	var sessions session.Store[onboarding.Session]

	if a.redis != nil {
		locker := redis.NewLocker(a.redis, "", a.cfg.CreateLockWait)
		resolverOpts = append(resolverOpts, resolver.WithLocker(locker, a.cfg.CreateLockTTL))
		workflowOpts = append(workflowOpts, onboarding.WithLocker(locker, a.cfg.CreateLockTTL))
		sessions = session.NewRedis[onboarding.Session](a.redis, "fern:session:", a.cfg.SessionTTL)
	} else {
		sessions = session.NewMemory[onboarding.Session](a.cfg.SessionTTL)
	}

	if a.producer != nil {
		workflowOpts = append(workflowOpts, onboarding.WithEmitter(events.NewEmitter(a.producer, a.logger)))
	}
	if a.graph != nil {
		workflowOpts = append(workflowOpts, onboarding.WithProjector(graph.NewProjector(a.graph, a.logger)))
	}

	res := resolver.NewResolver(a.store, dir, a.logger, resolverOpts...)
	a.workflow = onboarding.NewWorkflow(res, a.store, sessions, a.logger, workflowOpts...)
	a.checker.SetReady(true)
	return nil
}

func (a *app) directory() (directory.Client, error) {
	cfg := a.cfg

	var client directory.Client
	provider := cfg.DirectoryProvider
	switch provider {
	case config.DirectoryProviderPlaces:
		places, err := directory.NewPlaces(directory.PlacesConfig{
			APIKey:            cfg.DirectoryAPIKey,
			RadiusMeters:      cfg.DirectoryRadiusMeters,
			DetailsLimit:      cfg.DirectoryDetailsLimit,
			Timeout:           cfg.DirectoryTimeout,
			RequestsPerSecond: cfg.DirectoryRequestsPerSec,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		client = places
	default:
		client = directory.NewStatic(nil, a.logger)
	}

	if a.redis != nil && cfg.DirectoryCacheTTL > 0 {
		client = directory.NewCached(client, a.redis, cfg.DirectoryCacheTTL, provider, a.logger)
	}
	return client, nil
}

func (a *app) stop(ctx context.Context) error {
	a.checker.SetReady(false)
	return a.startup.Stop(ctx)
}

func migrationService(cfg *config.Config, logger ectologger.Logger) *database.MigrationService {
	return database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
}
