// Package txbuilder implements the Build and DryRunValidate steps of the
// execution pipeline: fee policy, two-pass input selection, and output
// ordering.
package txbuilder

import (
	"context"

	"github.com/google/uuid"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kaspa/address"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/rpc"
	"github.com/kaspax/txkernel/internal/utxo"
)

// FeeRateSource is the subset of rpc.Client a Builder needs for the network
// fee policy. FetchFeeEstimate never errors (it already falls back to
// config.DefaultFeeRate internally), so the interface reflects that.
type FeeRateSource interface {
	FetchFeeEstimate(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions) float64
}

// UtxoSource is the subset of utxo.Sync a Builder consumes.
type UtxoSource interface {
	GetOrSyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error)
	SyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error)
}

// LockedKeyProvider supplies the set of outpoints already committed to a
// non-terminal PendingTx, so the selector never double-spends.
type LockedKeyProvider interface {
	LockedKeys(fromAddress string) (map[string]bool, error)
}

// Recipient is one (address, amount) output the caller wants funded.
type Recipient struct {
	Address string
	Amount  kaspa.Sompi
}

// Intent is the caller-supplied request to build a spend. Recipients must
// hold at least one entry; the builder adds one output per recipient, in
// order, ahead of the treasury-fee and change outputs.
type Intent struct {
	FromAddress string
	Recipients  []Recipient
	Network     kaspa.Network
	AgentJobID  *string
	OpReturnHex *string
}

// Builder implements the build algorithm. TreasuryAddress is a
// deployment-wide config value (config.TreasuryAddress), not per-intent:
// an empty string disables the platform fee entirely.
type Builder struct {
	utxos           UtxoSource
	feeRate         FeeRateSource
	locked          LockedKeyProvider
	clk             clock.Clock
	rpcOpts         rpc.ResolveOptions
	treasuryAddress string
}

// NewBuilder wires a Builder to its UTXO, fee-rate, locked-key, and clock
// sources, plus the configured treasury address (empty disables the
// platform fee).
func NewBuilder(utxos UtxoSource, feeRate FeeRateSource, locked LockedKeyProvider, clk clock.Clock, rpcOpts rpc.ResolveOptions, treasuryAddress string) *Builder {
	return &Builder{utxos: utxos, feeRate: feeRate, locked: locked, clk: clk, rpcOpts: rpcOpts, treasuryAddress: treasuryAddress}
}

// Build runs the two-pass selection algorithm and returns a PendingTx in
// state Building.
func (b *Builder) Build(ctx context.Context, intent Intent) (*kaspa.PendingTx, error) {
	if len(intent.Recipients) == 0 {
		return nil, kerrors.ErrIntentEmpty
	}
	var total kaspa.Sompi
	for _, r := range intent.Recipients {
		if r.Amount <= 0 {
			return nil, kerrors.ErrAmountTooSmall
		}
		if r.Address == "" {
			return nil, kerrors.ErrIntentEmpty
		}
		if !address.MatchesNetwork(r.Address, intent.Network) {
			return nil, kerrors.ErrNetworkMismatch
		}
		total += r.Amount
	}
	if !address.MatchesNetwork(intent.FromAddress, intent.Network) {
		return nil, kerrors.ErrNetworkMismatch
	}

	treasuryConfigured := b.treasuryAddress != ""
	pFee := platformFee(total, treasuryConfigured)

	spend := total
	if pFee != nil {
		spend += *pFee
	}
	// Assume a change output will be needed for the first fee estimate;
	// the second pass re-estimates once the real input count is known.
	nOutputs := len(intent.Recipients) + 1
	if pFee != nil {
		nOutputs++
	}

	locked, err := b.locked.LockedKeys(intent.FromAddress)
	if err != nil {
		return nil, err
	}
	set, err := b.utxos.GetOrSyncUTXOs(ctx, intent.FromAddress)
	if err != nil {
		return nil, err
	}

	feeRate := b.feeRate.FetchFeeEstimate(ctx, intent.Network, b.rpcOpts)

	// First pass: estimate with n_inputs=1.
	fee := networkFee(feeRate, 1, nOutputs)
	selected, total, err := utxo.SelectUTXOs(set.UTXOs, spend, fee, locked)
	if err != nil {
		return nil, err
	}

	// Second pass: re-estimate with the actual input count; re-select if
	// the new spend+fee now exceeds what the first pass covered.
	fee = networkFee(feeRate, len(selected), nOutputs)
	if total < spend+fee {
		selected, total, err = utxo.SelectUTXOs(set.UTXOs, spend, fee, locked)
		if err != nil {
			return nil, err
		}
		fee = networkFee(feeRate, len(selected), nOutputs)
	}

	change := total - spend - fee
	if change < 0 {
		return nil, kerrors.ErrInsufficientFunds
	}

	outputs := make([]kaspa.Output, 0, len(intent.Recipients)+1)
	for _, r := range intent.Recipients {
		outputs = append(outputs, kaspa.Output{Address: r.Address, Amount: r.Amount})
	}
	if pFee != nil {
		outputs = append(outputs, kaspa.Output{Address: b.treasuryAddress, Amount: *pFee})
	}

	tx := &kaspa.PendingTx{
		ID:          uuid.NewString(),
		State:       kaspa.StateBuilding,
		FromAddress: intent.FromAddress,
		Network:     intent.Network,
		Inputs:      selected,
		Outputs:     outputs,
		Fee:         fee,
		PlatformFee: pFee,
		BuiltAt:     b.clk.Now(),
		AgentJobID:  intent.AgentJobID,
		OpReturnHex: intent.OpReturnHex,
	}
	if change > 0 {
		tx.Change = &kaspa.Output{Address: intent.FromAddress, Amount: change}
	}

	return tx, nil
}
