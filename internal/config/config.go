// Package config loads Lumyn's process configuration from three
// environment variables. It is intentionally small: a full layered
// file+env config loader would add unused surface for a process that
// only ever needs a handful of scalar settings — see DESIGN.md.
package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	defaultPolicyPath       = "policies/lumyn-support.v0.yml"
	defaultStorePath        = ".lumyn/lumyn.db"
	defaultTopK             = 5
	defaultSchemaDir        = "schemas"
	defaultReasonCodesPath  = "schemas/reason_codes.v0.json"
	defaultRedactionProfile = "default"
)

// Config is the engine's process-level configuration. PolicyPath,
// StorePath, and TopK are read from environment variables; SchemaDir,
// ReasonCodesPath, Mode, and RedactionProfile are call-level defaults the
// orchestrator needs, collapsed into one injected abstraction rather than
// scattered filesystem-relative constants.
type Config struct {
	PolicyPath       string
	StorePath        string
	TopK             int
	SchemaDir        string
	ReasonCodesPath  string
	Mode             string // "" means: do not override the policy's own mode
	RedactionProfile string
}

// FromEnv reads LUMYN_POLICY_PATH, LUMYN_STORE_PATH, and LUMYN_TOP_K.
// A missing or non-integer LUMYN_TOP_K falls back to 5.
func FromEnv() Config {
	cfg := Config{
		PolicyPath:       defaultPolicyPath,
		StorePath:        defaultStorePath,
		TopK:             defaultTopK,
		SchemaDir:        defaultSchemaDir,
		ReasonCodesPath:  defaultReasonCodesPath,
		RedactionProfile: defaultRedactionProfile,
	}
	if v := strings.TrimSpace(os.Getenv("LUMYN_POLICY_PATH")); v != "" {
		cfg.PolicyPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMYN_STORE_PATH")); v != "" {
		cfg.StorePath = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMYN_TOP_K")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TopK = n
		}
	}
	return cfg
}
