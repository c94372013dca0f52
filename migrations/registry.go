package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	payledger "github.com/goliatone/go-payledger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// DialectForDriver maps a database/sql driver name to the migration dialect
// that serves it.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pg", "pgx", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("migrations: unsupported driver %q", driver)
}

// Source is the migration tree for one dialect. Postgres files live at the
// root, the sqlite alternative under sqlite/.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	Targets []string
	Sources []Source
}

type RegisterFunc func(ctx context.Context, source Source) error

type Option func(*options)

type options struct {
	root    fs.FS
	targets []string
}

// WithRoot replaces the embedded ledger schema with another tree laid out
// the same way.
func WithRoot(root fs.FS) Option {
	return func(o *options) {
		if root != nil {
			o.root = root
		}
	}
}

func WithValidationTargets(targets ...string) Option {
	return func(o *options) {
		next := normalizeDialects(targets)
		if len(next) > 0 {
			o.targets = next
		}
	}
}

// Sources lists the dialect trees under root and fails when a dialect carries
// no up migrations.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = payledger.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// SourceForDriver returns the embedded tree serving driver.
func SourceForDriver(driver string) (Source, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return Source{}, err
	}
	sources, err := Sources(nil)
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: no tree for dialect %q", dialect)
}

// Register calls registerFn once per targeted dialect, postgres first.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	cfg := options{targets: []string{DialectPostgres, DialectSQLite}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	reg := Registration{Targets: cfg.targets}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources(cfg.root)
	if err != nil {
		return reg, err
	}
	for _, source := range sources {
		if !slices.Contains(cfg.targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		reg.Sources = append(reg.Sources, source)
	}
	if len(reg.Sources) == 0 {
		return reg, fmt.Errorf("migrations: no tree matches targets %v", cfg.targets)
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.ToLower(strings.TrimSpace(value))
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	return out
}
