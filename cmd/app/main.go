package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"billing-agent/internal/app"
	"billing-agent/internal/config"
	"billing-agent/internal/core"
	"billing-agent/internal/db"
	"billing-agent/internal/ledger"
	"billing-agent/internal/logger"
	"billing-agent/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.App)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if len(os.Args) < 2 {
		usage()
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		zlog.Fatal("unable to connect to order store", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.Database.DSN); err != nil {
		zlog.Fatal("failed to migrate order store", zap.Error(err))
	}

	ledgerClient := ledger.NewClient(*cfg.Ledger, zlog)
	if err := ledgerClient.Authenticate(ctx); err != nil {
		zlog.Fatal("failed to authenticate against ledger", zap.Error(err))
	}

	orderStore := store.New(pool)

	switch os.Args[1] {
	case "invoice":
		fs := flag.NewFlagSet("invoice", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "classify and build only, no ledger writes")
		limit := fs.Int("limit", 0, "maximum number of orders to process")
		orders := fs.String("orders", "", "comma-separated order ids (default: all pending)")
		workers := fs.Int("workers", 1, "parallel workers")
		fs.Parse(os.Args[2:])

		// The reference caches are only needed for invoice creation.
		cache, err := core.LoadRefCache(ctx, ledgerClient)
		if err != nil {
			zlog.Fatal("failed to load ledger reference caches", zap.Error(err))
		}

		svc := newAppService(orderStore, ledgerClient, cache, cfg, zlog)
		result, err := svc.RunInvoiceBatch(ctx, app.InvoiceBatchRequest{
			DryRun:   *dryRun,
			OrderIDs: splitIDs(*orders),
			Limit:    *limit,
			Workers:  *workers,
		})
		if err != nil {
			zlog.Fatal("invoice batch failed", zap.Error(err))
		}
		printJSON(result)

	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "report intents only, no ledger writes")
		settlement := fs.String("settlement", "", "settlement id (default: all settlements)")
		workers := fs.Int("workers", 1, "parallel workers")
		fs.Parse(os.Args[2:])

		svc := newAppService(orderStore, ledgerClient, nil, cfg, zlog)
		result, err := svc.RunReconcileBatch(ctx, app.ReconcileBatchRequest{
			DryRun:       *dryRun,
			SettlementID: *settlement,
			Workers:      *workers,
		})
		if err != nil {
			zlog.Fatal("reconciliation batch failed", zap.Error(err))
		}
		printJSON(result)

	case "orders":
		fs := flag.NewFlagSet("orders", flag.ExitOnError)
		status := fs.String("status", "", "filter by status (PENDING, INVOICED, SKIPPED, ERROR)")
		limit := fs.Int("limit", 50, "maximum rows")
		fs.Parse(os.Args[2:])

		svc := newAppService(orderStore, ledgerClient, nil, cfg, zlog)
		result, err := svc.ListOrders(ctx, app.ListOrdersRequest{Status: *status, Limit: *limit})
		if err != nil {
			zlog.Fatal("failed to list orders", zap.Error(err))
		}
		printJSON(result)

	default:
		usage()
	}
}

func newAppService(orderStore *store.Store, ledgerClient *ledger.Client, cache *core.RefCache, cfg *config.Config, zlog *zap.Logger) app.ApplicationService {
	invoices := core.NewInvoiceService(orderStore, ledgerClient, cache,
		cfg.Billing.HomeCountry, cfg.Billing.SalesJournal, zlog)
	matcher := core.NewSettlementMatcher(orderStore, zlog)
	reconciler := core.NewReconcileService(orderStore, ledgerClient, matcher, zlog)
	return app.NewService(invoices, reconciler, orderStore)
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: app <command> [flags]

Commands:
  invoice    invoice pending marketplace orders in the ledger
  reconcile  reconcile settlement payouts against invoices
  orders     list orders from the order store`)
	os.Exit(2)
}
