// Command lumyn-server runs the Lumyn decision engine behind an HTTP
// surface: a single net/http.Server wrapping a gorilla/mux router, with
// sane read-header timeouts and structured startup logging.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lumyn-labs/lumyn/internal/clock"
	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/engine"
	"github.com/lumyn-labs/lumyn/internal/httpapi"
	"github.com/lumyn-labs/lumyn/internal/ids"
	"github.com/lumyn-labs/lumyn/internal/log"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/schema"
	"github.com/lumyn-labs/lumyn/internal/store"
)

const defaultAddr = ":8090"

func main() {
	logger := log.New(os.Stdout, "lumyn-server", log.LevelInfo)

	cfg := config.FromEnv()
	schemas := schema.NewLoader(cfg.SchemaDir)
	policyLoader, err := policy.NewLoader(schemas, cfg.ReasonCodesPath)
	if err != nil {
		logger.Error("startup failed", log.F("error", err.Error()))
		os.Exit(1)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("startup failed", log.F("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	eng := engine.New(schemas, policyLoader, st, cfg)
	eng.Logger = logger
	eng.Builder.Clock = clock.System{}

	server := &httpapi.Server{Engine: eng, Logger: logger, IDs: ids.ULIDGenerator{}}

	addr := defaultAddr
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting", log.F("addr", addr), log.F("store_path", cfg.StorePath), log.F("policy_path", cfg.PolicyPath))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listen failed", log.F("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
