package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lumyn-labs/lumyn/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		PolicyPath: "policies/lumyn-support.v0.yml",
		StorePath:  ".lumyn/lumyn.db",
		TopK:       5,
	}
}

func TestEnsureSeedsPolicyAndStoreDir(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	if err := Ensure(dir, cfg); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	policyPath := filepath.Join(dir, cfg.PolicyPath)
	data, err := os.ReadFile(policyPath)
	if err != nil {
		t.Fatalf("expected a seeded policy file, got error: %v", err)
	}
	if string(data) != defaultPolicyDoc {
		t.Fatal("expected the seeded policy to match the default document")
	}

	storeDir := filepath.Dir(filepath.Join(dir, cfg.StorePath))
	if info, err := os.Stat(storeDir); err != nil || !info.IsDir() {
		t.Fatalf("expected the store directory to exist, got %v", err)
	}
}

func TestEnsureNeverOverwritesExistingPolicy(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	policyPath := filepath.Join(dir, cfg.PolicyPath)
	if err := os.MkdirAll(filepath.Dir(policyPath), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	custom := "policy_id: custom\n"
	if err := os.WriteFile(policyPath, []byte(custom), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := Ensure(dir, cfg); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != custom {
		t.Fatalf("expected the existing policy to survive untouched, got %q", string(data))
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	if err := Ensure(dir, cfg); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := Ensure(dir, cfg); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}
