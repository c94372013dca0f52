package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig loads configuration through provider and merges it with the
// defaults and runtime overrides, in that precedence order.
func ResolveConfig(
	ctx context.Context,
	provider ConfigProvider,
	resolver OptionsResolver,
	runtime Config,
) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, true),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// layerBuilder collects non-zero values unless includeZero is set. Loaded
// config already carries the defaults, so it is layered in full; runtime
// overrides only contribute what they set.
type layerBuilder struct {
	layer       map[string]any
	includeZero bool
}

func (b layerBuilder) section(name string) map[string]any {
	section, ok := b.layer[name].(map[string]any)
	if !ok {
		section = map[string]any{}
		b.layer[name] = section
	}
	return section
}

func (b layerBuilder) str(section string, key string, value string) {
	if b.includeZero || strings.TrimSpace(value) != "" {
		b.target(section)[key] = value
	}
}

func (b layerBuilder) integer(section string, key string, value int64) {
	if b.includeZero || value != 0 {
		b.target(section)[key] = value
	}
}

func (b layerBuilder) boolean(section string, key string, value bool) {
	if b.includeZero || value {
		b.target(section)[key] = value
	}
}

func (b layerBuilder) list(section string, key string, values []string) {
	if b.includeZero || len(values) > 0 {
		b.target(section)[key] = append([]string(nil), values...)
	}
}

func (b layerBuilder) target(section string) map[string]any {
	if section == "" {
		return b.layer
	}
	return b.section(section)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	b := layerBuilder{layer: map[string]any{}, includeZero: includeZero}

	b.str("", "service_name", cfg.ServiceName)

	b.str("http", "addr", cfg.HTTP.Addr)
	b.integer("http", "max_body_bytes", cfg.HTTP.MaxBodyBytes)

	b.str("webhook", "secret", cfg.Webhook.Secret)
	b.str("webhook", "signature_header", cfg.Webhook.SignatureHeader)
	b.str("webhook", "identity_header", cfg.Webhook.IdentityHeader)
	b.integer("webhook", "tolerance_seconds", int64(cfg.Webhook.ToleranceSeconds))
	b.integer("webhook", "unsupported_product_status", int64(cfg.Webhook.UnsupportedProductStatus))
	b.list("webhook", "credit_event_types", cfg.Webhook.CreditEventTypes)

	b.str("identity", "signing_secret", cfg.Identity.SigningSecret)
	b.str("identity", "issuer", cfg.Identity.Issuer)
	b.str("identity", "audience", cfg.Identity.Audience)
	b.integer("identity", "leeway_seconds", int64(cfg.Identity.LeewaySeconds))
	b.str("identity", "default_user_type", cfg.Identity.DefaultUserType)

	b.str("catalog", "dir", cfg.Catalog.Dir)

	b.str("database", "driver", cfg.Database.Driver)
	b.str("database", "dsn", cfg.Database.DSN)
	b.boolean("database", "debug", cfg.Database.Debug)
	b.integer("database", "ping_timeout_seconds", int64(cfg.Database.PingTimeoutSeconds))

	b.integer("cache", "profile_ttl_seconds", int64(cfg.Cache.ProfileTTLSeconds))

	b.integer("ledger", "max_cas_attempts", int64(cfg.Ledger.MaxCASAttempts))
	b.integer("ledger", "retry_backoff_millis", int64(cfg.Ledger.RetryBackoffMillis))

	b.boolean("metrics", "enabled", cfg.Metrics.Enabled)
	b.str("metrics", "namespace", cfg.Metrics.Namespace)

	return b.layer
}
