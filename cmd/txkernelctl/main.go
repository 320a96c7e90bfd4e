package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

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

	var err error
	switch os.Args[1] {
	case "dry-run":
		err = runDryRun(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "health":
		err = runHealth(os.Args[2:])
	case "version":
		fmt.Printf("txkernelctl %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: txkernelctl <command> [flags]

Commands:
  dry-run   Build and validate an intent without signing or broadcasting
  send      Build, validate, sign, and broadcast an intent
  health    Print the configured RPC preset/custom URL for a network
  version   Print version information
`)
}

type deps struct {
	cfg        *config.Config
	kv         *kvstore.BoltStore
	auditDB    *auditdb.DB
	kernel     *kernel.Kernel
	txStore    *store.PendingTxStore
	rpcSettings *store.RPCSettingsStore
	network    kaspa.Network
}

func setup() (*deps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}

	network, err := parseNetwork(cfg.Network)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	kv, err := kvstore.Open(cfg.KVPath)
	if err != nil {
		logCloser.Close()
		return nil, nil, fmt.Errorf("open kv store: %w", err)
	}

	auditDB, err := auditdb.New(cfg.DBPath)
	if err != nil {
		kv.Close()
		logCloser.Close()
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := auditDB.RunMigrations(); err != nil {
		auditDB.Close()
		kv.Close()
		logCloser.Close()
		return nil, nil, fmt.Errorf("run audit migrations: %w", err)
	}

	clk := clock.Real{}
	credStore := credential.NewFileStore(cfg.MnemonicFile, "", kv)
	sgnr := signer.New(credStore)

	health := rpc.NewHealthTracker(kv, clk)
	pool := rpc.NewPoolResolver(clk)
	rpcClient := rpc.New(health, pool, clk)

	rpcOpts := rpc.ResolveOptions{
		Preset:             config.PresetOfficial,
		CustomURL:          cfg.CustomRPCURL,
		LocalEnabled:       cfg.LocalRPCEnabled,
		LocalStatus:        rpc.LocalNodeStatus{RPCBaseURL: cfg.LocalRPCURL},
		RequireLocalSynced: cfg.RequireLocalSynced,
	}

	utxoSync := utxo.NewSync(rpcClient, clk, network, rpcOpts)
	txStore := store.NewPendingTxStore(kv)
	rpcSettings := store.NewRPCSettingsStore(kv)

	builder := txbuilder.NewBuilder(utxoSync, rpcClient, txStore, clk, rpcOpts, cfg.TreasuryAddress)
	emitter := telemetry.NewEmitter(kv, auditDB, clk)
	rec := reconciler.New(rpcClient, pool, clk)

	k := kernel.New(builder, sgnr, rpcClient, rec, txStore, utxoSync, emitter, clk)

	cleanup := func() {
		auditDB.Close()
		kv.Close()
		logCloser.Close()
	}

	return &deps{cfg: cfg, kv: kv, auditDB: auditDB, kernel: k, txStore: txStore, rpcSettings: rpcSettings, network: network}, cleanup, nil
}

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

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func runDryRun(args []string) error {
	fs := flag.NewFlagSet("dry-run", flag.ExitOnError)
	from := fs.String("from", "", "source address (required)")
	to := fs.String("to", "", "destination address (required)")
	amount := fs.Int64("amount", 0, "amount in sompi (required)")
	fs.Parse(args)

	if *from == "" || *to == "" || *amount <= 0 {
		return fmt.Errorf("--from, --to, and --amount are all required")
	}

	d, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	// dry-run never signs or broadcasts: build then validate, then cancel
	// rather than leave the tx sitting in DryRunOk forever.
	tx, err := d.kernel.ExecuteIntent(context.Background(), kernel.Intent{
		FromAddress: *from,
		Network:     d.network,
		Recipients:  []kernel.Recipient{{Address: *to, Amount: kaspa.Sompi(*amount)}},
	}, kernel.Options{})

	if tx != nil && (tx.State == kaspa.StateDryRunOk || tx.State == kaspa.StateDryRunFail) {
		_ = d.kernel.Cancel(tx)
	}

	if tx != nil {
		printJSON(tx)
	}
	if err != nil && tx == nil {
		return err
	}
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	from := fs.String("from", "", "source address (required)")
	to := fs.String("to", "", "destination address (required)")
	amount := fs.Int64("amount", 0, "amount in sompi (required)")
	await := fs.Bool("await", false, "wait for confirmation before returning")
	fs.Parse(args)

	if *from == "" || *to == "" || *amount <= 0 {
		return fmt.Errorf("--from, --to, and --amount are all required")
	}

	d, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	tx, err := d.kernel.ExecuteIntent(context.Background(), kernel.Intent{
		FromAddress: *from,
		Network:     d.network,
		Recipients:  []kernel.Recipient{{Address: *to, Amount: kaspa.Sompi(*amount)}},
	}, kernel.Options{AwaitConfirmation: *await, ConfirmTimeoutMS: config.ConfirmTimeoutMS, PollIntervalMS: config.ConfirmPollMS})

	if tx != nil {
		printJSON(tx)
	}
	return err
}

func runHealth(args []string) error {
	d, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	preset, err := d.rpcSettings.Preset(d.network)
	if err != nil {
		return err
	}
	custom, err := d.rpcSettings.CustomURL(d.network)
	if err != nil {
		return err
	}

	printJSON(map[string]string{
		"network":      string(d.network),
		"rpcPreset":    string(preset),
		"customRpcUrl": custom,
	})
	return nil
}
