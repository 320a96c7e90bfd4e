package txbuilder

import (
	"math"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
)

// platformFee computes the clamped treasury fee for amount, or nil if no
// treasury address is configured.
func platformFee(amount kaspa.Sompi, treasuryConfigured bool) *kaspa.Sompi {
	if !treasuryConfigured {
		return nil
	}
	bps := kaspa.Sompi(int64(amount) * config.PlatformFeeBPS / 10_000)
	fee := clampSompi(bps, config.MinPlatformFee, config.MaxPlatformFee)
	return &fee
}

// estimateMass is the transaction mass formula.
func estimateMass(nInputs, nOutputs int) int {
	return config.MassBase + config.MassPerInput*nInputs + config.MassPerOutput*nOutputs
}

// networkFee applies the safety-bps multiplier and clamp to a raw
// mass*feerate estimate.
func networkFee(feeRate float64, nInputs, nOutputs int) kaspa.Sompi {
	mass := estimateMass(nInputs, nOutputs)
	raw := math.Ceil(float64(mass) * feeRate)
	withSafety := math.Ceil(raw * float64(config.TxFeeSafetyBPS) / 10_000)
	return clampSompi(kaspa.Sompi(withSafety), config.TxFeeMinSompi, config.TxFeeMaxSompi)
}

func clampSompi(v kaspa.Sompi, lo, hi int64) kaspa.Sompi {
	if int64(v) < lo {
		return kaspa.Sompi(lo)
	}
	if int64(v) > hi {
		return kaspa.Sompi(hi)
	}
	return v
}
