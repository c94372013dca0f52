package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	payledger "github.com/goliatone/go-payledger"
	"github.com/goliatone/go-payledger/adapters/gocommand"
	"github.com/goliatone/go-payledger/adapters/gologger"
	promadapter "github.com/goliatone/go-payledger/adapters/prometheus"
	"github.com/goliatone/go-payledger/core"
	ledgermigrations "github.com/goliatone/go-payledger/migrations"
	sqlstore "github.com/goliatone/go-payledger/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// app is the process wiring shared by every subcommand.
type app struct {
	config        core.Config
	logger        *gologger.ZapLogger
	metrics       *promadapter.Recorder
	client        *persistence.Client
	service       *payledger.Service
	subscriptions gocommand.Subscriptions
}

func loadConfig(ctx context.Context, path string) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(core.NewFileConfigLoader(path))
	return core.ResolveConfig(ctx, provider, nil, core.Config{})
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := gologger.NewProductionLogger(opts.logLevel)
	if err != nil {
		return nil, err
	}
	out := &app{config: cfg, logger: logger}

	serviceOpts := []payledger.Option{
		payledger.WithLogger(logger),
		payledger.WithLoggerProvider(gologger.NewZapProvider(logger)),
	}
	if cfg.Metrics.Enabled {
		out.metrics = promadapter.NewRecorder(nil)
		serviceOpts = append(serviceOpts, payledger.WithMetricsRecorder(out.metrics))
	}

	if driver := strings.TrimSpace(cfg.Database.Driver); driver != "" && driver != core.DatabaseDriverMemory {
		client, openErr := openPersistence(cfg)
		if openErr != nil {
			return nil, openErr
		}
		out.client = client
		factory, factoryErr := sqlstore.NewRepositoryFactoryFromPersistence(client)
		if factoryErr != nil {
			out.Close()
			return nil, factoryErr
		}
		serviceOpts = append(serviceOpts, payledger.WithRepositoryFactory(factory))
		if ttl := cfg.ProfileCacheTTL(); ttl > 0 {
			cacheConfig := repositorycache.DefaultConfig()
			cacheConfig.TTL = ttl
			cacheService, cacheErr := repositorycache.NewCacheService(cacheConfig)
			if cacheErr != nil {
				out.Close()
				return nil, cacheErr
			}
			cached, cacheErr := sqlstore.NewCachedProfileStore(factory.ProfileStore(), cacheService)
			if cacheErr != nil {
				out.Close()
				return nil, cacheErr
			}
			serviceOpts = append(serviceOpts, payledger.WithProfileStore(cached))
		}
	} else {
		logger.Warn("database driver is memory, ledger state is lost on exit")
	}

	service, err := payledger.NewService(cfg, serviceOpts...)
	if err != nil {
		out.Close()
		return nil, err
	}
	out.service = service
	return out, nil
}

// registerHandlers subscribes the service commands and queries on the
// go-command dispatcher.
func (a *app) registerHandlers() error {
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := a.service.RegisterCommandHandlers(adapter)
	if err != nil {
		return err
	}
	a.subscriptions = subscriptions
	return adapter.Initialize()
}

func (a *app) Close() {
	if a == nil {
		return
	}
	a.subscriptions.Unsubscribe()
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func openPersistence(cfg core.Config) (*persistence.Client, error) {
	dialect, err := ledgermigrations.DialectForDriver(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("payledgerd: open database: %w", err)
	}
	var bunDialect schema.Dialect = pgdialect.New()
	if dialect == ledgermigrations.DialectSQLite {
		bunDialect = sqlitedialect.New()
	}
	client, err := persistence.New(cfg.Persistence(), sqlDB, bunDialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("payledgerd: persistence client: %w", err)
	}
	return client, nil
}

func runMigrations(ctx context.Context, cfg core.Config, client *persistence.Client) error {
	source, err := ledgermigrations.SourceForDriver(cfg.Database.Driver)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(source.FS)
	return client.Migrate(ctx)
}
