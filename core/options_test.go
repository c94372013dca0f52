package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fixedConfigProvider struct {
	cfg Config
	err error
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, p.err
}

func TestResolveConfig_DefaultsWhenNothingLoaded(t *testing.T) {
	cfg, err := ResolveConfig(context.Background(), nil, nil, Config{})
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "payledger" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Webhook.SignatureHeader != "stripe-signature" {
		t.Fatalf("expected default signature header, got %q", cfg.Webhook.SignatureHeader)
	}
	if cfg.Webhook.IdentityHeader != "x-firebase-user-auth" {
		t.Fatalf("expected default identity header, got %q", cfg.Webhook.IdentityHeader)
	}
	if cfg.Webhook.UnsupportedProductStatus != 422 {
		t.Fatalf("expected default unsupported status 422, got %d", cfg.Webhook.UnsupportedProductStatus)
	}
	if cfg.Database.Driver != DatabaseDriverMemory {
		t.Fatalf("expected memory driver by default, got %q", cfg.Database.Driver)
	}
}

func TestResolveConfig_RuntimeOverridesLoaded(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"service_name": "from-file",
		"webhook": map[string]any{
			"secret": "whsec_file",
		},
		"http": map[string]any{
			"addr": ":7000",
		},
	}})

	cfg, err := ResolveConfig(context.Background(), provider, GoOptionsResolver{}, Config{
		HTTP: HTTPConfig{Addr: ":9090"},
	})
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "from-file" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.Webhook.Secret != "whsec_file" {
		t.Fatalf("expected loaded webhook secret, got %q", cfg.Webhook.Secret)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("expected runtime addr override, got %q", cfg.HTTP.Addr)
	}
	if cfg.Webhook.SignatureHeader != "stripe-signature" {
		t.Fatalf("expected default signature header to survive, got %q", cfg.Webhook.SignatureHeader)
	}
}

func TestResolveConfig_PropagatesProviderError(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := ResolveConfig(context.Background(), &fixedConfigProvider{err: sentinel}, nil, Config{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestConfigValidate_RejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"missing service name":  func(c *Config) { c.ServiceName = "" },
		"missing sig header":    func(c *Config) { c.Webhook.SignatureHeader = " " },
		"missing id header":     func(c *Config) { c.Webhook.IdentityHeader = "" },
		"bad unsupported code":  func(c *Config) { c.Webhook.UnsupportedProductStatus = 200 },
		"member default type":   func(c *Config) { c.Identity.DefaultUserType = "member" },
		"unknown default type":  func(c *Config) { c.Identity.DefaultUserType = "visitor" },
		"unknown driver":        func(c *Config) { c.Database.Driver = "mysql" },
		"sqlite without dsn":    func(c *Config) { c.Database.Driver = DatabaseDriverSQLite },
		"negative cas attempts": func(c *Config) { c.Ledger.MaxCASAttempts = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
}

func TestFileConfigLoader_ReadsYAMLAndOverlaysEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payledger.yaml")
	content := strings.Join([]string{
		"service_name: ledger-test",
		"webhook:",
		"  secret: whsec_from_file",
		"catalog:",
		"  dir: /etc/products",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := map[string]string{
		"PAYLEDGER_WEBHOOK_SECRET": "whsec_from_env",
		"PAYLEDGER_DATABASE_DEBUG": "true",
	}
	loader := NewFileConfigLoader(path)
	loader.LookupEnv = func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["service_name"] != "ledger-test" {
		t.Fatalf("expected service name from file, got %#v", raw["service_name"])
	}
	webhook := raw["webhook"].(map[string]any)
	if webhook["secret"] != "whsec_from_env" {
		t.Fatalf("expected env secret to win, got %#v", webhook["secret"])
	}
	database := raw["database"].(map[string]any)
	if database["debug"] != true {
		t.Fatalf("expected typed debug flag, got %#v", database["debug"])
	}
}

func TestFileConfigLoader_ReadsTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payledger.toml")
	content := "service_name = \"toml-ledger\"\n\n[http]\naddr = \":8181\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loader := &FileConfigLoader{Path: path, LookupEnv: func(string) (string, bool) { return "", false }}

	cfg, err := NewCfgxConfigProvider(loader).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "toml-ledger" {
		t.Fatalf("expected toml service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTP.Addr != ":8181" {
		t.Fatalf("expected toml addr, got %q", cfg.HTTP.Addr)
	}
}

func TestFileConfigLoader_RejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payledger.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := NewFileConfigLoader(path).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
