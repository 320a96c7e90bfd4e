package handlers

import (
	"errors"
	"net/http"

	"github.com/kaspax/txkernel/internal/kerrors"
)

// classify maps a pipeline error to a stable taxonomy code and an HTTP
// status, so handlers never hand-roll status codes per error site.
func classify(err error) (code string, status int) {
	var execErr *kerrors.ExecutionError
	if errors.As(err, &execErr) {
		return string(execErr.Kind), statusForKind(execErr.Kind)
	}

	switch {
	case errors.Is(err, kerrors.ErrAmountTooSmall):
		return string(kerrors.KindAmountTooSmall), http.StatusBadRequest
	case errors.Is(err, kerrors.ErrIntentEmpty):
		return string(kerrors.KindIntentEmpty), http.StatusBadRequest
	case errors.Is(err, kerrors.ErrInvalidAddress):
		return string(kerrors.KindInvalidAddress), http.StatusBadRequest
	case errors.Is(err, kerrors.ErrNetworkMismatch):
		return string(kerrors.KindNetworkMismatch), http.StatusBadRequest
	case errors.Is(err, kerrors.ErrInsufficientFunds):
		return string(kerrors.KindInsufficientFunds), http.StatusUnprocessableEntity
	case errors.Is(err, kerrors.ErrCovenantOnlyFunds):
		return string(kerrors.KindCovenantOnlyFunds), http.StatusUnprocessableEntity
	case errors.Is(err, kerrors.ErrWalletLocked):
		return string(kerrors.KindWalletLocked), http.StatusConflict
	case errors.Is(err, kerrors.ErrPrecondFailed):
		return string(kerrors.KindPrecondFailed), http.StatusConflict
	case errors.Is(err, kerrors.ErrEndpointUnavailable):
		return string(kerrors.KindEndpointUnavailable), http.StatusServiceUnavailable
	case errors.Is(err, kerrors.ErrCircuitOpen):
		return string(kerrors.KindCircuitOpen), http.StatusServiceUnavailable
	default:
		return "InternalError", http.StatusInternalServerError
	}
}

func statusForKind(kind kerrors.Kind) int {
	switch kind {
	case kerrors.KindAmountTooSmall, kerrors.KindIntentEmpty, kerrors.KindInvalidAddress, kerrors.KindNetworkMismatch:
		return http.StatusBadRequest
	case kerrors.KindInsufficientFunds, kerrors.KindCovenantOnlyFunds, kerrors.KindUtxoSpent, kerrors.KindBalanceMismatch, kerrors.KindPrincipalToTreasury:
		return http.StatusUnprocessableEntity
	case kerrors.KindWalletLocked, kerrors.KindPrecondFailed:
		return http.StatusConflict
	case kerrors.KindEndpointUnavailable, kerrors.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case kerrors.KindConfirmTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
