package payledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payledger/catalog"
	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/identity"
	"github.com/goliatone/go-payledger/ledger"
	"github.com/goliatone/go-payledger/webhooks"
	"github.com/shopspring/decimal"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service wires the webhook pipeline to its collaborators and exposes the
// operator operations on the ledger.
type Service struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	observer       core.Observer

	catalog   core.ProductCatalog
	directory core.AccountDirectory
	profiles  core.ProfileStore
	timeline  core.TimelineStore
	ledger    core.LedgerStore
	failures  core.FailureStore

	verifier   webhooks.EventVerifier
	classifier *webhooks.Classifier
	resolver   *identity.Resolver
	mutator    *ledger.Mutator
	pipeline   *webhooks.Pipeline
	now        func() time.Time
}

type repositoryStoreFactory interface {
	BuildStores(persistenceClient any) (core.StoreProvider, error)
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	finalConfig, err := core.ResolveConfig(context.Background(), builder.configProvider, builder.optionsResolver, cfg)
	if err != nil {
		return nil, err
	}

	provider, logger := glog.Resolve("payledger", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	namedLogger := func(name string) core.Logger {
		if provider != nil {
			if named := provider.GetLogger(name); named != nil {
				return glog.Ensure(named)
			}
		}
		return logger
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	clock := builder.clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	namespace := finalConfig.Metrics.Namespace
	observerFor := func(name string) core.Observer {
		return core.NewObserver(namespace, namedLogger(name), builder.metricsRecorder)
	}

	if err := builder.resolveStores(); err != nil {
		return nil, err
	}
	if builder.catalog == nil {
		registry, loadErr := catalog.LoadDir(finalConfig.Catalog.Dir)
		if loadErr != nil {
			return nil, fmt.Errorf("payledger: load catalog: %w", loadErr)
		}
		builder.catalog = registry
	}
	if builder.directory == nil {
		if strings.TrimSpace(finalConfig.Identity.SigningSecret) == "" {
			return nil, fmt.Errorf("payledger: identity.signing_secret is required without an account directory")
		}
		directory, dirErr := identity.NewJWTDirectory(identity.JWTDirectoryConfig{
			Secret:   finalConfig.Identity.SigningSecret,
			Issuer:   finalConfig.Identity.Issuer,
			Audience: finalConfig.Identity.Audience,
			Leeway:   finalConfig.IdentityLeeway(),
		})
		if dirErr != nil {
			return nil, dirErr
		}
		builder.directory = directory
	}
	if builder.verifier == nil {
		if strings.TrimSpace(finalConfig.Webhook.Secret) == "" {
			return nil, fmt.Errorf("payledger: webhook.secret is required")
		}
		verifier := webhooks.NewSignatureVerifier(finalConfig.Webhook.Secret)
		verifier.SignatureHeader = finalConfig.Webhook.SignatureHeader
		verifier.IdentityHeader = finalConfig.Webhook.IdentityHeader
		verifier.Tolerance = finalConfig.SignatureTolerance()
		builder.verifier = verifier
	}

	resolver := identity.NewResolver(builder.directory, builder.profileStore, builder.timelineStore)
	resolver.DefaultUserType = finalConfig.DefaultUserType()
	resolver.Observer = observerFor("identity")
	resolver.Now = clock

	mutator := ledger.NewMutator(builder.ledgerStore)
	if finalConfig.Ledger.MaxCASAttempts > 0 {
		mutator.MaxAttempts = finalConfig.Ledger.MaxCASAttempts
	}
	mutator.RetryBackoff = finalConfig.LedgerRetryBackoff()
	mutator.Observer = observerFor("ledger")
	mutator.Now = clock

	classifier := webhooks.NewClassifier(finalConfig.Webhook.CreditEventTypes...)
	pipeline := webhooks.NewPipeline(builder.verifier, resolver, builder.catalog, classifier, mutator)
	pipeline.Failures = builder.failureStore
	if status := finalConfig.Webhook.UnsupportedProductStatus; status != 0 {
		pipeline.UnsupportedStatus = status
	}
	pipeline.Observer = observerFor("webhooks")
	pipeline.Now = clock

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        builder.metricsRecorder,
		observer:       observerFor("payledger"),
		catalog:        builder.catalog,
		directory:      builder.directory,
		profiles:       builder.profileStore,
		timeline:       builder.timelineStore,
		ledger:         builder.ledgerStore,
		failures:       builder.failureStore,
		verifier:       builder.verifier,
		classifier:     classifier,
		resolver:       resolver,
		mutator:        mutator,
		pipeline:       pipeline,
		now:            clock,
	}, nil
}

// resolveStores fills unset stores from the repository factory and then from
// the in-memory implementations. The memory ledger backs both the ledger and
// the failure store when neither is supplied.
func (b *serviceBuilder) resolveStores() error {
	if b.repositoryFactory != nil {
		var provider core.StoreProvider
		switch factory := b.repositoryFactory.(type) {
		case repositoryStoreFactory:
			built, err := factory.BuildStores(b.persistenceClient)
			if err != nil {
				return err
			}
			provider = built
		case core.StoreProvider:
			provider = factory
		default:
			return fmt.Errorf("payledger: unsupported repository factory %T", b.repositoryFactory)
		}
		if provider != nil {
			if b.profileStore == nil {
				b.profileStore = provider.ProfileStore()
			}
			if b.timelineStore == nil {
				b.timelineStore = provider.TimelineStore()
			}
			if b.ledgerStore == nil {
				b.ledgerStore = provider.LedgerStore()
			}
			if b.failureStore == nil {
				b.failureStore = provider.FailureStore()
			}
		}
	}

	if b.profileStore == nil {
		b.profileStore = identity.NewMemoryProfileStore()
	}
	if b.timelineStore == nil {
		b.timelineStore = identity.NewMemoryTimelineStore()
	}
	if b.ledgerStore == nil || b.failureStore == nil {
		memory := ledger.NewMemoryStore()
		if b.ledgerStore == nil {
			b.ledgerStore = memory
		}
		if b.failureStore == nil {
			b.failureStore = memory
		}
	}
	return nil
}

func (s *Service) ProcessWebhook(ctx context.Context, req webhooks.Request) webhooks.Outcome {
	if s == nil || s.pipeline == nil {
		var pipeline *webhooks.Pipeline
		return pipeline.Process(ctx, req)
	}
	return s.pipeline.Process(ctx, req)
}

// ReplayFailure re-applies a recorded credit failure. The ledger deduplicates
// on the event id, so replaying a failure whose credit landed meanwhile
// reports a duplicate and still resolves the failure.
func (s *Service) ReplayFailure(ctx context.Context, failureID string) (core.ReplayResult, error) {
	startedAt := time.Now()
	result, err := s.replayFailure(ctx, failureID)
	if s != nil {
		s.observer.ObserveOperation(ctx, startedAt, "replay_failure", err, map[string]any{
			"failure_id":  strings.TrimSpace(failureID),
			"event_id":    result.Failure.EventID,
			"user_id":     result.Failure.UserID,
			"merchant_id": result.Failure.MerchantID,
			"product_id":  result.Failure.ProductID,
			"duplicate":   result.Duplicate,
		})
	}
	return result, err
}

func (s *Service) replayFailure(ctx context.Context, failureID string) (core.ReplayResult, error) {
	if s == nil || s.failures == nil || s.mutator == nil {
		return core.ReplayResult{}, errors.New("payledger: service is not configured")
	}
	failureID = strings.TrimSpace(failureID)
	failure, err := s.failures.GetFailure(ctx, failureID)
	if err != nil {
		return core.ReplayResult{}, err
	}
	amount, err := s.replayAmount(failure)
	if err != nil {
		return core.ReplayResult{Failure: failure}, err
	}

	credit, err := s.mutator.ApplyCredit(ctx, ledger.CreditRequest{
		UserID:     failure.UserID,
		EventID:    failure.EventID,
		EventType:  failure.EventType,
		MerchantID: failure.MerchantID,
		ProductID:  failure.ProductID,
		Amount:     amount,
		OccurredAt: failure.OccurredAt,
		Snapshot:   failure.Snapshot,
	})
	if err != nil {
		return core.ReplayResult{Failure: failure}, err
	}

	if failure.Status != core.FailureStatusResolved {
		if err := s.failures.ResolveFailure(ctx, failure.ID, s.now().UTC()); err != nil {
			return core.ReplayResult{Failure: failure}, err
		}
		if reloaded, loadErr := s.failures.GetFailure(ctx, failure.ID); loadErr == nil {
			failure = reloaded
		}
	}
	return core.ReplayResult{
		Failure:     failure,
		Account:     credit.Account,
		Transaction: credit.Transaction,
		Duplicate:   credit.Duplicate,
	}, nil
}

// replayAmount returns the recorded amount. Failures recorded before the
// product was resolved carry none and are priced from the current catalog.
func (s *Service) replayAmount(failure core.CreditFailure) (decimal.Decimal, error) {
	if failure.Amount.IsPositive() {
		return failure.Amount, nil
	}
	if s.classifier != nil && s.classifier.Classify(failure.EventType) != webhooks.ActionCredit {
		return decimal.Zero, goerrors.New("failure event type "+failure.EventType+" does not credit the ledger", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	if s.catalog == nil {
		return decimal.Zero, errors.New("payledger: catalog is not configured")
	}
	product, err := s.catalog.Lookup(failure.MerchantID, failure.ProductID)
	if err != nil {
		return decimal.Zero, err
	}
	amount, ok := product.CreditAmount()
	if !ok {
		return decimal.Zero, &core.UnsupportedProductError{
			MerchantID: product.MerchantID,
			ProductID:  product.ProductID,
			Type:       product.Type(),
			Status:     s.config.Webhook.UnsupportedProductStatus,
		}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &core.MisconfiguredProductError{
			MerchantID: product.MerchantID,
			ProductID:  product.ProductID,
			Reason:     "credit amount is missing",
		}
	}
	return amount, nil
}

// ResolveFailure marks a failure resolved without touching the ledger.
func (s *Service) ResolveFailure(ctx context.Context, failureID string) error {
	if s == nil || s.failures == nil {
		return errors.New("payledger: service is not configured")
	}
	return s.failures.ResolveFailure(ctx, strings.TrimSpace(failureID), s.now().UTC())
}

func (s *Service) GetAccount(ctx context.Context, userID string) (core.UserAccount, error) {
	if s == nil || s.mutator == nil {
		return core.UserAccount{}, errors.New("payledger: service is not configured")
	}
	return s.mutator.GetAccount(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID string, page core.Page) ([]core.TransactionRecord, error) {
	if s == nil || s.mutator == nil {
		return nil, errors.New("payledger: service is not configured")
	}
	return s.mutator.ListTransactions(ctx, userID, page)
}

func (s *Service) GetFailure(ctx context.Context, failureID string) (core.CreditFailure, error) {
	if s == nil || s.failures == nil {
		return core.CreditFailure{}, errors.New("payledger: service is not configured")
	}
	return s.failures.GetFailure(ctx, strings.TrimSpace(failureID))
}

func (s *Service) ListFailures(ctx context.Context, filter core.FailureFilter) ([]core.CreditFailure, error) {
	if s == nil || s.failures == nil {
		return nil, errors.New("payledger: service is not configured")
	}
	filter.Page = filter.Page.Normalize()
	return s.failures.ListFailures(ctx, filter)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Catalog() core.ProductCatalog {
	if s == nil {
		return nil
	}
	return s.catalog
}

func (s *Service) Pipeline() *webhooks.Pipeline {
	if s == nil {
		return nil
	}
	return s.pipeline
}
