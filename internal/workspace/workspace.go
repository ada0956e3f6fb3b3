// Package workspace lazily bootstraps a Lumyn working directory: a
// `.lumyn/` store file plus a default policy document, so the CLI's
// decide/explain/export commands work against a fresh checkout without
// a separate init step.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/lumyn-labs/lumyn/internal/config"
)

const defaultPolicyDoc = `policy_id: lumyn-support.v0
policy_version: "1"
mode: enforce
stages:
  - id: refunds
    match:
      eq: {path: action.type, value: support.refund}
    rules:
      - id: high-value-refund
        when:
          gte: {path: action.amount.value, value: 500}
        effect: block
        reason_codes: [HIGH_VALUE]
      - id: low-value-refund
        when:
          lt: {path: action.amount.value, value: 500}
        effect: allow
        reason_codes: []
`

// Ensure creates dir (and the directories LUMYN_STORE_PATH/LUMYN_POLICY_PATH
// resolve into) if they do not already exist, and seeds a starter policy
// document at cfg.PolicyPath when nothing is there yet. It never
// overwrites an existing policy or store file.
func Ensure(dir string, cfg config.Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	storeDir := filepath.Dir(filepath.Join(dir, cfg.StorePath))
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return err
	}

	policyPath := filepath.Join(dir, cfg.PolicyPath)
	if _, err := os.Stat(policyPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(policyPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(policyPath, []byte(defaultPolicyDoc), 0o644); err != nil {
			return err
		}
	}
	return nil
}
