package main

import (
	"path/filepath"

	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/engine"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/schema"
	"github.com/lumyn-labs/lumyn/internal/store"
	"github.com/lumyn-labs/lumyn/internal/workspace"
)

func buildEngine(dir string) (*engine.Engine, func() error, error) {
	cfg := config.FromEnv()
	relPolicy, relStore := cfg.PolicyPath, cfg.StorePath
	cfg.PolicyPath = filepath.Join(dir, cfg.PolicyPath)
	cfg.StorePath = filepath.Join(dir, cfg.StorePath)

	// Schemas and the reason-code registry ship alongside the binary's
	// source tree, not inside a per-workspace directory.
	if err := workspace.Ensure(dir, config.Config{
		PolicyPath: relPolicy,
		StorePath:  relStore,
	}); err != nil {
		return nil, nil, err
	}

	schemas := schema.NewLoader(cfg.SchemaDir)
	policyLoader, err := policy.NewLoader(schemas, cfg.ReasonCodesPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(schemas, policyLoader, st, cfg)
	return eng, st.Close, nil
}
