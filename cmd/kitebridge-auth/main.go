// kitebridge-auth runs the interactive login flow from a terminal and
// persists the resulting session, so the server and tool binaries can
// start with a valid credential already on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"kitebridge/internal/auth"
	"kitebridge/internal/broker"
	"kitebridge/internal/config"
	"kitebridge/internal/session"
	"kitebridge/internal/util"
)

func main() {
	status := flag.Bool("status", false, "print session status and exit")
	logout := flag.Bool("logout", false, "remove the persisted session and exit")
	flag.Parse()

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

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
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

	ctx := context.Background()

	switch {
	case *status:
		if sessions.Authenticated(ctx) {
			info := sessions.Info()
			fmt.Printf("Authenticated as %s (%s), session created %s\n",
				info.UserName, info.UserID, info.CreatedDate)
		} else {
			fmt.Println("Not authenticated.")
			os.Exit(1)
		}
	case *logout:
		removed, err := sessions.Logout()
		if err != nil {
			log.Fatalf("logout: %v", err)
		}
		if removed {
			fmt.Println("Session removed.")
		} else {
			fmt.Println("No session to remove.")
		}
	default:
		if _, err := sessions.Token(ctx); err != nil {
			log.Fatalf("authentication failed: %v", err)
		}
		info := sessions.Info()
		fmt.Printf("Logged in as %s (%s). Session saved to %s\n",
			info.UserName, info.UserID, cfg.SessionPath())
	}
}
