package core

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DatabaseDriverMemory   = "memory"
	DatabaseDriverSQLite   = "sqlite3"
	DatabaseDriverPostgres = "postgres"
)

type HTTPConfig struct {
	Addr         string `koanf:"addr" mapstructure:"addr"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type WebhookConfig struct {
	Secret                   string   `koanf:"secret" mapstructure:"secret"`
	SignatureHeader          string   `koanf:"signature_header" mapstructure:"signature_header"`
	IdentityHeader           string   `koanf:"identity_header" mapstructure:"identity_header"`
	ToleranceSeconds         int      `koanf:"tolerance_seconds" mapstructure:"tolerance_seconds"`
	UnsupportedProductStatus int      `koanf:"unsupported_product_status" mapstructure:"unsupported_product_status"`
	CreditEventTypes         []string `koanf:"credit_event_types" mapstructure:"credit_event_types"`
}

type IdentityConfig struct {
	SigningSecret   string `koanf:"signing_secret" mapstructure:"signing_secret"`
	Issuer          string `koanf:"issuer" mapstructure:"issuer"`
	Audience        string `koanf:"audience" mapstructure:"audience"`
	LeewaySeconds   int    `koanf:"leeway_seconds" mapstructure:"leeway_seconds"`
	DefaultUserType string `koanf:"default_user_type" mapstructure:"default_user_type"`
}

type CatalogConfig struct {
	Dir string `koanf:"dir" mapstructure:"dir"`
}

type DatabaseConfig struct {
	Driver             string `koanf:"driver" mapstructure:"driver"`
	DSN                string `koanf:"dsn" mapstructure:"dsn"`
	Debug              bool   `koanf:"debug" mapstructure:"debug"`
	PingTimeoutSeconds int    `koanf:"ping_timeout_seconds" mapstructure:"ping_timeout_seconds"`
}

type CacheConfig struct {
	ProfileTTLSeconds int `koanf:"profile_ttl_seconds" mapstructure:"profile_ttl_seconds"`
}

type LedgerConfig struct {
	MaxCASAttempts     int `koanf:"max_cas_attempts" mapstructure:"max_cas_attempts"`
	RetryBackoffMillis int `koanf:"retry_backoff_millis" mapstructure:"retry_backoff_millis"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled" mapstructure:"enabled"`
	Namespace string `koanf:"namespace" mapstructure:"namespace"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Identity    IdentityConfig `koanf:"identity" mapstructure:"identity"`
	Catalog     CatalogConfig  `koanf:"catalog" mapstructure:"catalog"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Cache       CacheConfig    `koanf:"cache" mapstructure:"cache"`
	Ledger      LedgerConfig   `koanf:"ledger" mapstructure:"ledger"`
	Metrics     MetricsConfig  `koanf:"metrics" mapstructure:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "payledger",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
		},
		Webhook: WebhookConfig{
			SignatureHeader:          "stripe-signature",
			IdentityHeader:           "x-firebase-user-auth",
			ToleranceSeconds:         300,
			UnsupportedProductStatus: http.StatusUnprocessableEntity,
		},
		Identity: IdentityConfig{
			LeewaySeconds:   5,
			DefaultUserType: string(UserTypeGuest),
		},
		Catalog: CatalogConfig{
			Dir: "products",
		},
		Database: DatabaseConfig{
			Driver:             DatabaseDriverMemory,
			PingTimeoutSeconds: 5,
		},
		Cache: CacheConfig{
			ProfileTTLSeconds: 60,
		},
		Ledger: LedgerConfig{
			MaxCASAttempts:     5,
			RetryBackoffMillis: 10,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "payledger",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Webhook.SignatureHeader) == "" {
		return fmt.Errorf("core: webhook.signature_header is required")
	}
	if strings.TrimSpace(c.Webhook.IdentityHeader) == "" {
		return fmt.Errorf("core: webhook.identity_header is required")
	}
	if c.Webhook.ToleranceSeconds < 0 {
		return fmt.Errorf("core: webhook.tolerance_seconds must be >= 0")
	}
	if status := c.Webhook.UnsupportedProductStatus; status != 0 && (status < 400 || status > 599) {
		return fmt.Errorf("core: webhook.unsupported_product_status must be a 4xx or 5xx code, got %d", status)
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("core: http.max_body_bytes must be >= 0")
	}
	if _, err := ParseUserType(c.Identity.DefaultUserType, UserTypeGuest); err != nil {
		return fmt.Errorf("core: identity.default_user_type is invalid: %w", err)
	}
	if UserType(strings.ToLower(strings.TrimSpace(c.Identity.DefaultUserType))) == UserTypeMember {
		return fmt.Errorf("core: identity.default_user_type cannot be member")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case "", DatabaseDriverMemory, DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("core: database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.Driver == DatabaseDriverSQLite || c.Database.Driver == DatabaseDriverPostgres {
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("core: database.dsn is required for driver %s", c.Database.Driver)
		}
	}
	if c.Ledger.MaxCASAttempts < 0 {
		return fmt.Errorf("core: ledger.max_cas_attempts must be >= 0")
	}
	return nil
}

func (c Config) SignatureTolerance() time.Duration {
	return time.Duration(c.Webhook.ToleranceSeconds) * time.Second
}

func (c Config) IdentityLeeway() time.Duration {
	return time.Duration(c.Identity.LeewaySeconds) * time.Second
}

func (c Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.Cache.ProfileTTLSeconds) * time.Second
}

func (c Config) LedgerRetryBackoff() time.Duration {
	return time.Duration(c.Ledger.RetryBackoffMillis) * time.Millisecond
}

func (c Config) DefaultUserType() UserType {
	userType, err := ParseUserType(c.Identity.DefaultUserType, UserTypeGuest)
	if err != nil {
		return UserTypeGuest
	}
	return userType
}

// PersistenceConfig adapts the database section to the go-persistence-bun
// client configuration contract.
type PersistenceConfig struct {
	Database    DatabaseConfig
	ServiceName string
}

func (c Config) Persistence() PersistenceConfig {
	return PersistenceConfig{Database: c.Database, ServiceName: c.ServiceName}
}

func (c PersistenceConfig) GetDebug() bool { return c.Database.Debug }

func (c PersistenceConfig) GetDriver() string { return c.Database.Driver }

func (c PersistenceConfig) GetServer() string { return c.Database.DSN }

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.Database.PingTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Database.PingTimeoutSeconds) * time.Second
}

func (c PersistenceConfig) GetOtelIdentifier() string { return c.ServiceName }
