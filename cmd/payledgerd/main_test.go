package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func testCatalogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "merchant_a.yaml"), "products:\n  - id: premium\n    credit_amount: 5\n  - id: plan\n    type: saas\n")
	return dir
}

func testConfigFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "payledger.yaml")
	writeTestFile(t, path, fmt.Sprintf(`webhook:
  secret: whsec_cli
identity:
  signing_secret: jwt_cli
catalog:
  dir: %s
database:
  driver: sqlite3
  dsn: "file:%s?_foreign_keys=on"
metrics:
  enabled: false
`, testCatalogDir(t), filepath.Join(dir, "ledger.db")))
	return path
}

func TestCatalogValidate(t *testing.T) {
	out, err := runRoot(t, "catalog", "validate", testCatalogDir(t))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "1 merchants, 2 products") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCatalogValidate_ReportsBrokenProduct(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "merchant_a.yaml"), "products:\n  - id: premium\n    type: tokens\n")
	if _, err := runRoot(t, "catalog", "validate", dir); err == nil {
		t.Fatalf("expected missing credit amount to fail validation")
	}
}

func TestCatalogList(t *testing.T) {
	out, err := runRoot(t, "catalog", "list", testCatalogDir(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "premium") || !strings.Contains(out, "subscription") {
		t.Fatalf("expected both products in output, got %q", out)
	}
}

func TestMigrateThenQueryLedger(t *testing.T) {
	config := testConfigFile(t)

	out, err := runRoot(t, "--config", config, "--log-level", "error", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrations applied") {
		t.Fatalf("unexpected migrate output %q", out)
	}

	if _, err := runRoot(t, "--config", config, "--log-level", "error", "balance", "user_1"); err == nil {
		t.Fatalf("expected unknown account to fail")
	}

	out, err = runRoot(t, "--config", config, "--log-level", "error", "failures")
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	if strings.TrimSpace(out) != "[]" && strings.TrimSpace(out) != "null" {
		t.Fatalf("expected no failures, got %q", out)
	}
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	if _, err := runRoot(t, "migrate"); err == nil {
		t.Fatalf("expected memory driver to be rejected")
	}
}
