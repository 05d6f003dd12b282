package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/chart"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

func main() {
	chartPath := flag.String("chart", "deploy/seed/chart.yml", "chart of accounts YAML")
	rawScope := flag.String("scope", "demo/main", "workspace/org to seed")
	flag.Parse()

	scope, err := docstore.ParseScope(*rawScope)
	if err != nil {
		log.Fatalf("scope: %v", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	f, err := os.Open(*chartPath)
	if err != nil {
		log.Fatalf("open chart: %v", err)
	}
	defer f.Close()
	c, err := chart.Parse(f)
	if err != nil {
		log.Fatalf("parse chart: %v", err)
	}

	store, err := app.OpenStore(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()
	services := app.NewServices(app.ServicesParams{Store: store, Logger: logger})

	fmt.Println("→ Seeding chart of accounts into", scope.String())
	res, err := chart.Apply(ctx, scope, c, services.Accounts, services.Mappings)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	logger.Info("chart applied",
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		slog.Int("mapped", res.Mapped))
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}
