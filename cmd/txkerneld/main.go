package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kaspax/txkernel/internal/api"
	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/credential"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kernel"
	"github.com/kaspax/txkernel/internal/kvstore"
	"github.com/kaspax/txkernel/internal/logging"
	"github.com/kaspax/txkernel/internal/reconciler"
	"github.com/kaspax/txkernel/internal/rpc"
	"github.com/kaspax/txkernel/internal/signer"
	"github.com/kaspax/txkernel/internal/store"
	"github.com/kaspax/txkernel/internal/store/auditdb"
	"github.com/kaspax/txkernel/internal/telemetry"
	"github.com/kaspax/txkernel/internal/txbuilder"
	"github.com/kaspax/txkernel/internal/utxo"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "migrate":
		if err := runMigrate(); err != nil {
			slog.Error("migrate error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("txkerneld %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: txkerneld <command>

Commands:
  serve     Start the execution kernel's HTTP server
  migrate   Run audit database migrations
  version   Print version information
`)
}

// parseNetwork maps the lowercase config value onto the canonical
// kaspa.Network tag.
func parseNetwork(s string) (kaspa.Network, error) {
	switch s {
	case "mainnet":
		return kaspa.Mainnet, nil
	case "testnet10":
		return kaspa.Testnet10, nil
	case "testnet11":
		return kaspa.Testnet11, nil
	case "testnet12":
		return kaspa.Testnet12, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := auditdb.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("audit database migrations applied", "path", cfg.DBPath)
	return nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	network, err := parseNetwork(cfg.Network)
	if err != nil {
		return err
	}

	slog.Info("starting txkerneld",
		"version", version,
		"network", network,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"kvPath", cfg.KVPath,
	)

	kv, err := kvstore.Open(cfg.KVPath)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()

	auditDB, err := auditdb.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer auditDB.Close()
	if err := auditDB.RunMigrations(); err != nil {
		return fmt.Errorf("run audit migrations: %w", err)
	}

	clk := clock.Real{}

	credStore := credential.NewFileStore(cfg.MnemonicFile, "", kv)
	sgnr := signer.New(credStore)

	health := rpc.NewHealthTracker(kv, clk)
	health.SetPersistHook(func(h map[string]*kaspa.EndpointHealth, b map[string]kaspa.CircuitBreakerState) {
		if err := auditDB.UpsertProviderHealth(h, b); err != nil {
			slog.Warn("mirror provider health to audit db failed", "error", err)
		}
	})
	pool := rpc.NewPoolResolver(clk)
	rpcClient := rpc.New(health, pool, clk)

	rpcOpts := resolveOptionsFor(cfg)

	utxoSync := utxo.NewSync(rpcClient, clk, network, rpcOpts)
	pendingTxStore := store.NewPendingTxStore(kv)
	rpcSettings := store.NewRPCSettingsStore(kv)

	builder := txbuilder.NewBuilder(utxoSync, rpcClient, pendingTxStore, clk, rpcOpts, cfg.TreasuryAddress)
	emitter := telemetry.NewEmitter(kv, auditDB, clk)
	rec := reconciler.New(rpcClient, pool, clk)

	k := kernel.New(builder, sgnr, rpcClient, rec, pendingTxStore, utxoSync, emitter, clk)

	router := api.NewRouter(k, pendingTxStore, rpcSettings, auditDB, network)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), config.MillisDuration(config.StartupProbeTimeoutMS))
	runStartupHealthProbes(startupCtx, rpcClient, pool, network, rpcOpts)
	runStartupReconciliation(startupCtx, rec, pendingTxStore, network, rpcOpts)
	startupCancel()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runStartupHealthProbes fans a direct GET /info/blockdag out to every URL
// the pool would currently resolve to, seeding health/breaker state before
// the server accepts its first real request rather than letting the first
// caller pay for cold ranking data.
func runStartupHealthProbes(ctx context.Context, client *rpc.Client, pool *rpc.PoolResolver, network kaspa.Network, opts rpc.ResolveOptions) {
	resolved := pool.Resolve(network, opts)
	if len(resolved.URLs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, baseURL := range resolved.URLs {
		wg.Add(1)
		go func(baseURL string) {
			defer wg.Done()
			if err := client.ProbeEndpoint(ctx, baseURL); err != nil {
				slog.Warn("startup health probe failed", "baseURL", baseURL, "error", err)
			}
		}(baseURL)
	}
	wg.Wait()
}

// runStartupReconciliation re-probes every pending transaction left in a
// non-terminal, already-broadcast state by a prior process, so a crash
// between broadcast and confirmation doesn't leave a transaction stuck
// showing stale state until its next natural poll.
func runStartupReconciliation(ctx context.Context, rec *reconciler.Reconciler, pendingTxStore *store.PendingTxStore, network kaspa.Network, opts rpc.ResolveOptions) {
	txs, err := pendingTxStore.All()
	if err != nil {
		slog.Error("startup reconciliation scan: list pending transactions failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, tx := range txs {
		if !kaspa.NonTerminalStates[tx.State] || tx.TxID == "" {
			continue
		}
		wg.Add(1)
		go func(tx *kaspa.PendingTx) {
			defer wg.Done()
			if err := rec.ProbeOnce(ctx, tx, network, opts); err != nil {
				slog.Warn("startup reconciliation probe failed", "id", tx.ID, "txid", tx.TxID, "error", err)
				return
			}
			if err := pendingTxStore.Save(tx); err != nil {
				slog.Error("startup reconciliation save failed", "id", tx.ID, "error", err)
			}
		}(tx)
	}
	wg.Wait()
}

// resolveOptionsFor builds the RPC pool resolution inputs from static
// config. Local-node health is not actively polled by this entrypoint:
// when KASPAX_LOCAL_RPC_ENABLED is set, the configured URL is offered but
// treated as unhealthy until a future poller populates real status.
func resolveOptionsFor(cfg *config.Config) rpc.ResolveOptions {
	return rpc.ResolveOptions{
		Preset:       config.PresetOfficial,
		CustomURL:    cfg.CustomRPCURL,
		LocalEnabled: cfg.LocalRPCEnabled,
		LocalStatus: rpc.LocalNodeStatus{
			RPCBaseURL: cfg.LocalRPCURL,
		},
		RequireLocalSynced: cfg.RequireLocalSynced,
	}
}
