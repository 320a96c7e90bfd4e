package txbuilder

import (
	"context"

	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kaspa/address"
	"github.com/kaspax/txkernel/internal/kerrors"
)

// DryRunResult is the outcome of DryRunValidate. A non-empty
// Errors means the transaction must not proceed to Sign.
type DryRunResult struct {
	Valid        bool
	EstimatedFee kaspa.Sompi
	ChangeAmount kaspa.Sompi
	Errors       []error
}

// DryRunValidate re-fetches a fresh UTXO set (bypassing the cache) and
// re-checks every invariant the builder assumed still holds. It never
// mutates tx; the caller applies EstimatedFee/ChangeAmount if Valid.
func (b *Builder) DryRunValidate(ctx context.Context, tx *kaspa.PendingTx) DryRunResult {
	var errs []error

	fresh, err := b.utxos.SyncUTXOs(ctx, tx.FromAddress)
	if err != nil {
		return DryRunResult{Errors: []error{err}}
	}

	present := make(map[string]kaspa.UTXO, len(fresh.UTXOs))
	for _, u := range fresh.UTXOs {
		present[u.Outpoint.Key()] = u
	}
	for _, in := range tx.Inputs {
		if _, ok := present[in.Outpoint.Key()]; !ok {
			errs = append(errs, kerrors.ErrUtxoSpent)
			break
		}
	}

	if !address.MatchesNetwork(tx.FromAddress, tx.Network) {
		errs = append(errs, kerrors.ErrNetworkMismatch)
	}
	for _, out := range tx.Outputs {
		if !address.MatchesNetwork(out.Address, tx.Network) {
			errs = append(errs, kerrors.ErrNetworkMismatch)
			break
		}
	}
	if tx.Change != nil && !address.MatchesNetwork(tx.Change.Address, tx.Network) {
		errs = append(errs, kerrors.ErrNetworkMismatch)
	}

	if b.treasuryAddress != "" {
		legitTreasuryOutput := b.treasuryOutputAddress(tx)
		for i, out := range tx.Outputs {
			isLegitTreasuryOutput := i == len(tx.Outputs)-1 && legitTreasuryOutput == b.treasuryAddress
			if out.Address == b.treasuryAddress && !isLegitTreasuryOutput {
				errs = append(errs, kerrors.ErrPrincipalToTreasury)
				break
			}
		}
		if tx.Change != nil && tx.Change.Address == b.treasuryAddress {
			errs = append(errs, kerrors.ErrPrincipalToTreasury)
		}
	}

	feeRate := b.feeRate.FetchFeeEstimate(ctx, tx.Network, b.rpcOpts)
	recomputedFee := networkFee(feeRate, len(tx.Inputs), len(tx.Outputs)+changeOutputCount(tx))

	inputTotal := tx.SumInputs()
	outputTotal := tx.SumOutputs()
	changeAmount := kaspa.Sompi(0)
	if tx.Change != nil {
		changeAmount = tx.Change.Amount
	}
	if inputTotal != outputTotal+changeAmount+tx.Fee {
		errs = append(errs, kerrors.ErrBalanceMismatch)
	}

	if len(errs) > 0 {
		return DryRunResult{Valid: false, Errors: errs}
	}

	return DryRunResult{
		Valid:        true,
		EstimatedFee: recomputedFee,
		ChangeAmount: changeAmount,
	}
}

// treasuryOutputAddress returns the address of tx's platform-fee output, if
// any: the one output after the recipient outputs when PlatformFee is set
// (change is held apart in tx.Change). The builder always appends it last.
func (b *Builder) treasuryOutputAddress(tx *kaspa.PendingTx) string {
	if tx.PlatformFee == nil || len(tx.Outputs) < 2 {
		return ""
	}
	return tx.Outputs[len(tx.Outputs)-1].Address
}

func changeOutputCount(tx *kaspa.PendingTx) int {
	if tx.Change != nil {
		return 1
	}
	return 0
}
