package payledger

import (
	"time"

	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/webhooks"
)

type Option func(*serviceBuilder)

type serviceBuilder struct {
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	catalog           core.ProductCatalog
	directory         core.AccountDirectory
	verifier          webhooks.EventVerifier
	profileStore      core.ProfileStore
	timelineStore     core.TimelineStore
	ledgerStore       core.LedgerStore
	failureStore      core.FailureStore
	persistenceClient any
	repositoryFactory any
	clock             func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithRegistry replaces the catalog loaded from catalog.dir.
func WithRegistry(catalog core.ProductCatalog) Option {
	return func(b *serviceBuilder) {
		b.catalog = catalog
	}
}

// WithAccountDirectory replaces the JWT directory built from the identity
// config section.
func WithAccountDirectory(directory core.AccountDirectory) Option {
	return func(b *serviceBuilder) {
		b.directory = directory
	}
}

func WithEventVerifier(verifier webhooks.EventVerifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithProfileStore(store core.ProfileStore) Option {
	return func(b *serviceBuilder) {
		b.profileStore = store
	}
}

func WithTimelineStore(store core.TimelineStore) Option {
	return func(b *serviceBuilder) {
		b.timelineStore = store
	}
}

func WithLedgerStore(store core.LedgerStore) Option {
	return func(b *serviceBuilder) {
		b.ledgerStore = store
	}
}

func WithFailureStore(store core.FailureStore) Option {
	return func(b *serviceBuilder) {
		b.failureStore = store
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory supplies stores that were not set explicitly. The
// factory is either a core.StoreProvider or exposes
// BuildStores(persistenceClient any) (core.StoreProvider, error).
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}
