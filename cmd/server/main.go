// Package main runs the sale coordinator service:
// - Polling (continuous): phase, applicant and buyer mirrors
// - Subscription (continuous): purchase notifications over WebSocket
// - Archive (scheduled): purchase, decision and snapshot history
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tokensale-coordinator/internal/coordinator"
	"tokensale-coordinator/internal/history"
	chstore "tokensale-coordinator/internal/history/clickhouse"
	"tokensale-coordinator/internal/history/memory"
	"tokensale-coordinator/internal/history/migrations"
	pgstore "tokensale-coordinator/internal/history/postgres"
	"tokensale-coordinator/internal/ledger"
)

// allStores holds all archive storage implementations.
type allStores struct {
	purchaseStore history.PurchaseEventStore
	decisionStore history.AdmissionDecisionStore
	snapshotStore history.SaleSnapshotStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("LEDGER_RPC_ENDPOINT"), "Ledger JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("LEDGER_WS_ENDPOINT"), "Ledger WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory archive storage instead of PostgreSQL/ClickHouse")
	phasePoll := flag.Duration("phase-poll-interval", coordinator.DefaultPhasePollInterval, "Phase and applicant poll interval")
	buyerPoll := flag.Duration("buyer-poll-interval", coordinator.DefaultBuyerPollInterval, "Buyer record poll interval")
	snapshotInterval := flag.Duration("snapshot-interval", coordinator.DefaultSnapshotInterval, "Sale snapshot archive interval")
	apiAddr := flag.String("api-addr", ":8080", "HTTP API address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory archive)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create archive stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create archive stores: %v", err)
	}
	defer cleanup()

	// Create ledger clients
	client := ledger.NewHTTPClient(*rpcEndpoint)

	var subscriber ledger.Subscriber
	if *wsEndpoint != "" {
		ws, err := ledger.NewWSClient(ctx, *wsEndpoint, nil, log.New(os.Stdout, "[ws] ", log.LstdFlags))
		if err != nil {
			logger.Fatalf("Failed to connect ledger websocket: %v", err)
		}
		subscriber = ws
	} else {
		logger.Println("No --ws-endpoint; purchase updates come from polling only")
	}

	// Create coordinator
	coord, err := coordinator.New(coordinator.Options{
		Ledger:            client,
		Subscriber:        subscriber,
		Purchases:         stores.purchaseStore,
		Decisions:         stores.decisionStore,
		Snapshots:         stores.snapshotStore,
		PhasePollInterval: *phasePoll,
		BuyerPollInterval: *buyerPoll,
		SnapshotInterval:  *snapshotInterval,
		Logger:            log.New(os.Stdout, "[coordinator] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create coordinator: %v", err)
	}

	if err := coord.Start(ctx); err != nil {
		logger.Fatalf("Failed to start coordinator: %v", err)
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP API
	api := newAPI(coord, logger)
	srv := &http.Server{Addr: *apiAddr, Handler: api.routes()}

	go func() {
		logger.Printf("Starting HTTP API on %s", *apiAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}

	if err := coord.Close(); err != nil {
		logger.Printf("Coordinator shutdown error: %v", err)
	}

	close(done)
	logger.Println("Shutdown complete")
}

// createStores creates all required archive stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			purchaseStore: memory.NewPurchaseEventStore(),
			decisionStore: memory.NewAdmissionDecisionStore(),
			snapshotStore: memory.NewSaleSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (discrete observations)
		purchaseStore: pgstore.NewPurchaseEventStore(pool),
		decisionStore: pgstore.NewAdmissionDecisionStore(pool),

		// ClickHouse store (timeseries)
		snapshotStore: chstore.NewSaleSnapshotStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
