package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/rpc"
)

var errTransport = errors.New("transport error")

type scriptedFetcher struct {
	clk       *clock.Fake
	advanceBy time.Duration
	responses []*rpc.TransactionReceipt
	errs      []error
	call      int
}

func (f *scriptedFetcher) FetchTransaction(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, txid string) (*rpc.TransactionReceipt, error) {
	f.clk.Advance(f.advanceBy)
	i := f.call
	f.call++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

type fixedPool struct{ pool rpc.ResolvedPool }

func (f *fixedPool) Resolve(network kaspa.Network, opts rpc.ResolveOptions) rpc.ResolvedPool {
	return f.pool
}

func TestWaitForConfirmation_ConfirmsOnAcceptingBlockHash(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	blockHash := "0xabc"
	fetcher := &scriptedFetcher{
		clk:       clk,
		advanceBy: time.Millisecond,
		responses: []*rpc.TransactionReceipt{
			{TxID: "deadbeef", AcceptingBlockHash: nil, Endpoint: "https://a"},
			{TxID: "deadbeef", AcceptingBlockHash: &blockHash, Endpoint: "https://a"},
		},
	}
	pool := &fixedPool{pool: rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}}
	r := New(fetcher, pool, clk)

	tx := &kaspa.PendingTx{ID: "tx-1", TxID: "deadbeef", State: kaspa.StateBroadcasting}

	probes := 0
	err := r.WaitForConfirmation(context.Background(), tx, Options{
		Network:   kaspa.Mainnet,
		TimeoutMS: 10_000,
		PollMS:    1,
		OnProbe:   func(*kaspa.PendingTx) { probes++ },
	})
	if err != nil {
		t.Fatalf("WaitForConfirmation() error = %v", err)
	}
	if tx.State != kaspa.StateConfirmed {
		t.Fatalf("State = %v, want Confirmed", tx.State)
	}
	if tx.Confirmations != 1 {
		t.Fatalf("Confirmations = %d, want 1", tx.Confirmations)
	}
	if tx.AcceptingBlockHash == nil || *tx.AcceptingBlockHash != blockHash {
		t.Fatalf("AcceptingBlockHash = %v, want %s", tx.AcceptingBlockHash, blockHash)
	}
	if tx.ReceiptProbeAttempts != 2 {
		t.Fatalf("ReceiptProbeAttempts = %d, want 2", tx.ReceiptProbeAttempts)
	}
	if probes != 2 {
		t.Fatalf("expected OnProbe called twice, got %d", probes)
	}
}

func TestWaitForConfirmation_TimesOut(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	fetcher := &scriptedFetcher{
		clk:       clk,
		advanceBy: time.Second,
		responses: []*rpc.TransactionReceipt{
			{TxID: "deadbeef", AcceptingBlockHash: nil, Endpoint: "https://a"},
		},
	}
	pool := &fixedPool{pool: rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}}
	r := New(fetcher, pool, clk)

	tx := &kaspa.PendingTx{ID: "tx-1", TxID: "deadbeef", State: kaspa.StateBroadcasting}

	err := r.WaitForConfirmation(context.Background(), tx, Options{
		Network:   kaspa.Mainnet,
		TimeoutMS: 2_000,
		PollMS:    1,
	})
	if err != kerrors.ErrConfirmTimeout {
		t.Fatalf("expected ErrConfirmTimeout, got %v", err)
	}
	if tx.State != kaspa.StateFailed {
		t.Fatalf("State = %v, want Failed", tx.State)
	}
}

func TestWaitForConfirmation_TransportErrorContinues(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	blockHash := "0xabc"
	fetcher := &scriptedFetcher{
		clk:       clk,
		advanceBy: time.Millisecond,
		responses: []*rpc.TransactionReceipt{
			nil,
			{TxID: "deadbeef", AcceptingBlockHash: &blockHash, Endpoint: "https://a"},
		},
		errs: []error{errTransport},
	}
	pool := &fixedPool{pool: rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}}
	r := New(fetcher, pool, clk)

	tx := &kaspa.PendingTx{ID: "tx-1", TxID: "deadbeef", State: kaspa.StateBroadcasting}

	err := r.WaitForConfirmation(context.Background(), tx, Options{
		Network:   kaspa.Mainnet,
		TimeoutMS: 10_000,
		PollMS:    1,
	})
	if err != nil {
		t.Fatalf("WaitForConfirmation() error = %v", err)
	}
	if tx.State != kaspa.StateConfirmed {
		t.Fatalf("expected eventual confirmation despite a transport error, got state %v", tx.State)
	}
}

func TestWaitForConfirmation_RequiresTxID(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	r := New(&scriptedFetcher{clk: clk}, &fixedPool{}, clk)
	tx := &kaspa.PendingTx{ID: "tx-1"}

	err := r.WaitForConfirmation(context.Background(), tx, Options{Network: kaspa.Mainnet})
	if err != kerrors.ErrPrecondFailed {
		t.Fatalf("expected ErrPrecondFailed, got %v", err)
	}
}

func TestProbeOnce_ConfirmsWithoutLooping(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	blockHash := "0xabc"
	fetcher := &scriptedFetcher{
		clk:       clk,
		advanceBy: time.Millisecond,
		responses: []*rpc.TransactionReceipt{
			{TxID: "deadbeef", AcceptingBlockHash: &blockHash, Endpoint: "https://a"},
		},
	}
	pool := &fixedPool{pool: rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}}
	r := New(fetcher, pool, clk)

	tx := &kaspa.PendingTx{ID: "tx-1", TxID: "deadbeef", State: kaspa.StateBroadcasting}

	if err := r.ProbeOnce(context.Background(), tx, kaspa.Mainnet, rpc.ResolveOptions{}); err != nil {
		t.Fatalf("ProbeOnce() error = %v", err)
	}
	if tx.State != kaspa.StateConfirmed {
		t.Fatalf("State = %v, want Confirmed", tx.State)
	}
	if tx.ReceiptProbeAttempts != 1 {
		t.Fatalf("ReceiptProbeAttempts = %d, want 1", tx.ReceiptProbeAttempts)
	}
	if fetcher.call != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetcher.call)
	}
}

func TestProbeOnce_NotYetAcceptedLeavesStateUnchanged(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	fetcher := &scriptedFetcher{
		clk:       clk,
		advanceBy: time.Millisecond,
		responses: []*rpc.TransactionReceipt{
			{TxID: "deadbeef", AcceptingBlockHash: nil, Endpoint: "https://a"},
		},
	}
	pool := &fixedPool{pool: rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}}
	r := New(fetcher, pool, clk)

	tx := &kaspa.PendingTx{ID: "tx-1", TxID: "deadbeef", State: kaspa.StateBroadcasting}

	if err := r.ProbeOnce(context.Background(), tx, kaspa.Mainnet, rpc.ResolveOptions{}); err != nil {
		t.Fatalf("ProbeOnce() error = %v", err)
	}
	if tx.State != kaspa.StateBroadcasting {
		t.Fatalf("State = %v, want unchanged Broadcasting", tx.State)
	}
}

func TestProbeOnce_RequiresTxID(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	r := New(&scriptedFetcher{clk: clk}, &fixedPool{}, clk)
	tx := &kaspa.PendingTx{ID: "tx-1"}

	err := r.ProbeOnce(context.Background(), tx, kaspa.Mainnet, rpc.ResolveOptions{})
	if err != kerrors.ErrPrecondFailed {
		t.Fatalf("expected ErrPrecondFailed, got %v", err)
	}
}
