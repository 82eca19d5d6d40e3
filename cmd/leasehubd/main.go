package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leasehub/audit"
	"leasehub/config"
	"leasehub/core"
	coreevents "leasehub/core/events"
	"leasehub/native/rental"
	"leasehub/observability/logging"
	"leasehub/rpc"
	"leasehub/storage"
)

const (
	rpcTokenEnv = "LEASEHUB_RPC_TOKEN"
	envEnv      = "LEASEHUB_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envEnv))
	logger := logging.Setup("leasehubd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Env
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	journal, err := audit.Open(cfg.JournalPath)
	if err != nil {
		logger.Error("Failed to open audit journal", slog.Any("error", err))
		os.Exit(1)
	}
	defer journal.Close()

	node := core.NewNode(db, core.WithEmitter(coreevents.MultiEmitter{journal}))

	feeBps := cfg.FeeBps
	if feeBps == 0 {
		feeBps = rental.DefaultFeeBps
	}
	if strings.TrimSpace(cfg.FeeCollector) != "" {
		collector, err := config.ParseAddress(cfg.FeeCollector)
		if err != nil {
			logger.Error("Invalid fee collector address", slog.Any("error", err))
			os.Exit(1)
		}
		if err := node.InitFeePolicy(collector, feeBps); err != nil {
			logger.Error("Failed to seed fee policy", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := rpc.NewServer(node, rpc.Options{
		AuthToken:       strings.TrimSpace(os.Getenv(rpcTokenEnv)),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("JSON-RPC server listening", slog.String("address", cfg.RPCAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
