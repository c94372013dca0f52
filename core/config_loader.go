package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvBinding maps an environment variable onto a dotted config path.
type EnvBinding struct {
	Name string
	Path string
	Kind string
}

// DefaultEnvBindings lists the variables FileConfigLoader applies on top of
// the file. Later bindings for the same path win when both are set.
var DefaultEnvBindings = []EnvBinding{
	{Name: "STRIPE_WEBHOOK_SECRET", Path: "webhook.secret"},
	{Name: "PAYLEDGER_WEBHOOK_SECRET", Path: "webhook.secret"},
	{Name: "PAYLEDGER_HTTP_ADDR", Path: "http.addr"},
	{Name: "PAYLEDGER_IDENTITY_SIGNING_SECRET", Path: "identity.signing_secret"},
	{Name: "PAYLEDGER_IDENTITY_ISSUER", Path: "identity.issuer"},
	{Name: "PAYLEDGER_IDENTITY_AUDIENCE", Path: "identity.audience"},
	{Name: "PAYLEDGER_CATALOG_DIR", Path: "catalog.dir"},
	{Name: "PAYLEDGER_DATABASE_DRIVER", Path: "database.driver"},
	{Name: "PAYLEDGER_DATABASE_DSN", Path: "database.dsn"},
	{Name: "PAYLEDGER_DATABASE_DEBUG", Path: "database.debug", Kind: "bool"},
	{Name: "PAYLEDGER_METRICS_ENABLED", Path: "metrics.enabled", Kind: "bool"},
}

// FileConfigLoader reads a YAML, TOML or JSON file into a raw config map and
// overlays environment variables. A missing Path yields only the env overlay.
type FileConfigLoader struct {
	Path      string
	Bindings  []EnvBinding
	LookupEnv func(key string) (string, bool)
}

func NewFileConfigLoader(path string) *FileConfigLoader {
	return &FileConfigLoader{
		Path:      path,
		Bindings:  DefaultEnvBindings,
		LookupEnv: os.LookupEnv,
	}
}

func (l *FileConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}
	if l == nil {
		return raw, nil
	}
	if path := strings.TrimSpace(l.Path); path != "" {
		decoded, err := decodeConfigFile(path)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, binding := range l.Bindings {
		value, ok := lookup(binding.Name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		typed, err := envValue(binding, value)
		if err != nil {
			return nil, err
		}
		setPath(raw, binding.Path, typed)
	}
	return raw, nil
}

func decodeConfigFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read config %s: %w", path, err)
	}
	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &out)
	case ".toml":
		err = toml.Unmarshal(content, &out)
	case ".json":
		err = json.Unmarshal(content, &out)
	default:
		return nil, fmt.Errorf("core: unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("core: decode config %s: %w", path, err)
	}
	return out, nil
}

func envValue(binding EnvBinding, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch binding.Kind {
	case "bool":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be a boolean: %w", binding.Name, err)
		}
		return parsed, nil
	case "int":
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be an integer: %w", binding.Name, err)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setPath(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := target
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
