// Package reconciler implements ReceiptReconciler.wait_for_confirmation:
// polling a broadcast transaction's acceptance state and annotating
// provenance without ever touching the tx's financial fields.
package reconciler

import (
	"context"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/rpc"
)

// TransactionFetcher is the subset of rpc.Client a Reconciler consumes.
type TransactionFetcher interface {
	FetchTransaction(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, txid string) (*rpc.TransactionReceipt, error)
}

// PoolPeeker exposes the backend selection a probe will use, so the
// reconciler can snapshot it for telemetry before the probe runs.
type PoolPeeker interface {
	Resolve(network kaspa.Network, opts rpc.ResolveOptions) rpc.ResolvedPool
}

// Options configures one wait_for_confirmation call.
type Options struct {
	Network   kaspa.Network
	RPCOpts   rpc.ResolveOptions
	TimeoutMS int
	PollMS    int

	// OnProbe is called after every probe attempt, whether or not it
	// confirmed the transaction.
	OnProbe func(tx *kaspa.PendingTx)

	// OnBackendSnapshot is called with the backend source/reason the probe
	// resolved against, for telemetry, since that reason string isn't part
	// of PendingTx's own persisted provenance fields.
	OnBackendSnapshot func(source kaspa.ReceiptBackendSource, reason string)
}

// Reconciler polls fetcher until a transaction is accepted or a deadline
// elapses.
type Reconciler struct {
	fetcher TransactionFetcher
	pool    PoolPeeker
	clk     clock.Clock
}

// New wires a Reconciler to its transaction fetcher, pool peeker, and clock.
func New(fetcher TransactionFetcher, pool PoolPeeker, clk clock.Clock) *Reconciler {
	return &Reconciler{fetcher: fetcher, pool: pool, clk: clk}
}

// WaitForConfirmation polls tx.TxID until it is accepted into a block or
// the deadline elapses, mutating only provenance and terminal-state fields
// on tx. tx.TxID must already be set.
func (r *Reconciler) WaitForConfirmation(ctx context.Context, tx *kaspa.PendingTx, opts Options) error {
	if tx.TxID == "" {
		return kerrors.ErrPrecondFailed
	}

	timeout := clampFloor(opts.TimeoutMS, config.ConfirmTimeoutMS, config.ConfirmTimeoutFloorMS)
	poll := clampFloor(opts.PollMS, config.ConfirmPollMS, config.ConfirmPollFloorMS)

	deadline := r.clk.Now().Add(config.MillisDuration(timeout))

	for {
		// Real wall-clock sleep between probes, matching internal/rpc's own
		// retry-backoff precedent of using time.After directly rather than
		// an injected clock (clk here drives deadline bookkeeping only, so
		// tests can simulate a long timeout without actually waiting for it).
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.MillisDuration(poll)):
		}

		resolved := r.pool.Resolve(opts.Network, opts.RPCOpts)

		receipt, err := r.fetcher.FetchTransaction(ctx, opts.Network, opts.RPCOpts, tx.TxID)
		checkedAt := r.clk.Now()
		tx.ReceiptCheckedAt = &checkedAt
		tx.ReceiptProbeAttempts++

		source := resolved.Source
		tx.ReceiptSourceBackend = &source

		if opts.OnBackendSnapshot != nil {
			opts.OnBackendSnapshot(resolved.Source, resolved.Reason)
		}

		if err == nil && receipt != nil {
			endpoint := receipt.Endpoint
			tx.ReceiptSourceEndpoint = &endpoint
			tx.AcceptingBlockHash = receipt.AcceptingBlockHash
		}

		if opts.OnProbe != nil {
			opts.OnProbe(tx)
		}

		if tx.AcceptingBlockHash != nil {
			tx.State = kaspa.StateConfirmed
			tx.Confirmations = 1
			tx.ConfirmedAt = &checkedAt
			tx.SignedTxPayload = nil
			return nil
		}

		if !r.clk.Now().Before(deadline) {
			tx.State = kaspa.StateFailed
			tx.Error = kerrors.ErrConfirmTimeout.Error()
			return kerrors.ErrConfirmTimeout
		}
	}
}

// ProbeOnce issues a single acceptance check for tx.TxID and applies the
// same provenance/terminal-state mutations as one WaitForConfirmation
// iteration, but never sleeps and never loops: it is meant for the
// startup reconciliation scan, which fans a single probe out to every
// non-terminal transaction left over from a prior process rather than
// sitting in a poll loop for each one.
func (r *Reconciler) ProbeOnce(ctx context.Context, tx *kaspa.PendingTx, network kaspa.Network, rpcOpts rpc.ResolveOptions) error {
	if tx.TxID == "" {
		return kerrors.ErrPrecondFailed
	}

	resolved := r.pool.Resolve(network, rpcOpts)

	receipt, err := r.fetcher.FetchTransaction(ctx, network, rpcOpts, tx.TxID)
	checkedAt := r.clk.Now()
	tx.ReceiptCheckedAt = &checkedAt
	tx.ReceiptProbeAttempts++

	source := resolved.Source
	tx.ReceiptSourceBackend = &source

	if err == nil && receipt != nil {
		endpoint := receipt.Endpoint
		tx.ReceiptSourceEndpoint = &endpoint
		tx.AcceptingBlockHash = receipt.AcceptingBlockHash
	}

	if tx.AcceptingBlockHash != nil {
		tx.State = kaspa.StateConfirmed
		tx.Confirmations = 1
		tx.ConfirmedAt = &checkedAt
		tx.SignedTxPayload = nil
	}

	return nil
}

func clampFloor(requested, def, floor int) int {
	v := requested
	if v <= 0 {
		v = def
	}
	if v < floor {
		v = floor
	}
	return v
}
