// kitebridge-export dumps the structured order attempt history to a
// Parquet file for offline analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"kitebridge/internal/config"
	"kitebridge/internal/history"
)

func main() {
	out := flag.String("out", "order_attempts.parquet", "output parquet file")
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

	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Fatalf("opening history db: %v", err)
	}
	defer hist.Close()

	n, err := hist.ExportParquet(context.Background(), *out)
	if err != nil {
		log.Fatalf("exporting: %v", err)
	}
	fmt.Printf("Exported %d order attempts to %s\n", n, *out)
}
