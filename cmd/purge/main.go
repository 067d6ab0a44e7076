package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/safehug/cmd/mainconfig"
	appconfig "github.com/wolfman30/safehug/internal/config"
	"github.com/wolfman30/safehug/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	olderThan := flag.Duration("older-than", cfg.RetentionAnonymousAge, "purge anonymous uploads created before now minus this age")
	flag.Parse()

	logger := logging.NewWithFormat(cfg.LogLevel, "text")
	if cfg.DatabaseURL == "" {
		fmt.Println("Error: DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := mainconfig.NewApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		fmt.Printf("Error initializing services: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	fmt.Printf("Purging anonymous uploads older than %s...\n", *olderThan)
	res, err := app.Cleaner().PurgeAnonymous(ctx, *olderThan)
	if err != nil {
		fmt.Printf("Error purging: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cutoff:          %s\n", res.Cutoff.Format(time.RFC3339))
	fmt.Printf("Uploads:         %d\n", res.Uploads)
	fmt.Printf("Analyses:        %d\n", res.Analyses)
	fmt.Printf("Cache evicted:   %d\n", res.CacheEvicted)
	fmt.Printf("Objects deleted: %d\n", res.ObjectsDeleted)
}
