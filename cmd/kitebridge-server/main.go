package main

import (
	"context"
	"log"
	"net/http"
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
	"kitebridge/internal/httpapi"
	"kitebridge/internal/orderlog"
	"kitebridge/internal/session"
	"kitebridge/internal/util"
)

func main() {
	// .env is optional; real deployments set the environment directly.
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

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var bk broker.Client
	if cfg.Trading.Broker == "simulator" {
		bk = broker.NewSimulator()
	} else {
		bk = broker.NewKiteClient(cfg.Kite.APIKey, cfg.Kite.APISecret)
	}

	var source auth.CodeSource
	if cfg.Auth.CodeSource == "prompt" {
		source = &auth.PromptSource{In: os.Stdin, Out: os.Stderr}
	} else {
		source = auth.NewCallbackListener(cfg.Kite.RedirectURI, cfg.Auth.OpenBrowser, logger)
	}
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
	api := httpapi.NewServer(gw, sessions, bk.Name(), logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("kitebridge server listening", "addr", httpServer.Addr, "broker", bk.Name())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down kitebridge server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
