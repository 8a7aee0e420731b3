package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/escrowlabs/escrowd/internal/auth"
	"github.com/escrowlabs/escrowd/internal/config"
	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/metrics"
	"github.com/escrowlabs/escrowd/internal/middleware"
	"github.com/escrowlabs/escrowd/internal/models"
	"github.com/escrowlabs/escrowd/internal/rpc"
	"github.com/escrowlabs/escrowd/internal/service"
	"github.com/escrowlabs/escrowd/internal/storage/sqlite"
	"github.com/escrowlabs/escrowd/internal/treasury"
	"github.com/escrowlabs/escrowd/pkg/logging"
)

func main() {
	logging.Setup()

	cfg := config.LoadFromPath(os.Getenv("ESCROWD_CONFIG"))
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Server.DBPath)

	m := metrics.New()
	bank := treasury.NewBank()

	ledger, err := escrow.New(escrow.Config{
		Owner:      models.Principal(cfg.Escrow.Owner),
		Arbitrator: models.Principal(cfg.Escrow.Arbitrator),
		FeePercent: cfg.Escrow.FeePercent,
		Timeout:    cfg.Escrow.Timeout,
	}, bank, store, escrow.MultiSink{service.LogSink{}, service.NewStoreSink(store), m})
	if err != nil {
		slog.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	// Warm start from persisted snapshots.
	projects, err := store.ListProjects(context.Background())
	if err != nil {
		slog.Error("Failed to load persisted projects", "error", err)
		os.Exit(1)
	}
	ledger.Restore(projects)
	slog.Info("Ledger restored", "projects", len(projects))

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	escrowSvc := service.NewEscrowService(ledger, store)
	adminSvc := service.NewAdminService(ledger)
	authSvc := service.NewAuthService(authenticator, jwtManager)

	rpcServer := rpc.NewServer(escrowSvc, adminSvc, authSvc, cfg.RateLimit)

	mux := http.NewServeMux()
	mux.Handle("/rpc", middleware.Identify(jwtManager)(rpcServer.Handler()))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Add logging and CORS middleware
	loggedHandler := middleware.Logging(middleware.CORS(mux))

	// Wrap with h2c for HTTP/2 without TLS
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Escrow server starting", "address", addr, "fee_percent", cfg.Escrow.FeePercent, "timeout", cfg.Escrow.Timeout)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
