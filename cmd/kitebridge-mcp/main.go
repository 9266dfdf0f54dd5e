package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kitebridge/internal/auth"
	"kitebridge/internal/broker"
	"kitebridge/internal/config"
	"kitebridge/internal/gateway"
	"kitebridge/internal/history"
	"kitebridge/internal/mcp"
	"kitebridge/internal/orderlog"
	"kitebridge/internal/session"
	"kitebridge/internal/util"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfgPath := "config/kitebridge.yaml"
	if p := os.Getenv("KITEBRIDGE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Stdout carries protocol frames; everything else goes to stderr.
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var bk broker.Client
	if cfg.Trading.Broker == "simulator" {
		bk = broker.NewSimulator()
	} else {
		bk = broker.NewKiteClient(cfg.Kite.APIKey, cfg.Kite.APISecret)
	}

	// The prompt source would fight with the protocol over stdin, so the
	// tool server always captures the redirect locally.
	source := auth.NewCallbackListener(cfg.Kite.RedirectURI, cfg.Auth.OpenBrowser, logger)
	flow := auth.NewFlow(bk, source, time.Duration(cfg.Auth.TimeoutSeconds)*time.Second, logger)

	store := session.NewFileStore(cfg.SessionPath(), logger)
	sessions := session.NewManager(store, bk, flow, cfg.Auth.ClearOnInvalid, logger)

	audit, err := orderlog.Open(cfg.Storage.OrderLogFile, logger)
	if err != nil {
		log.Fatalf("opening order log: %v", err)
	}
	defer audit.Close()

	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Fatalf("opening history db: %v", err)
	}
	defer hist.Close()

	gw := gateway.New(sessions, bk, audit, hist, logger)

	srv := mcp.NewServer("kitebridge", version, os.Stdin, os.Stdout, logger)
	mcp.RegisterTradingTools(srv, gw)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("tool server error", "error", err)
		os.Exit(1)
	}
}
