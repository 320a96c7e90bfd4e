// Package kerrors defines the kernel's error taxonomy: one sentinel error and
// one string code per kind, plus a wrapper that carries pipeline stage and
// transaction context the way an ExecutionError must for callers to recover
// or present failure without a second round-trip.
package kerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per taxonomy kind.
var (
	ErrAmountTooSmall     = errors.New("amount must be greater than zero")
	ErrIntentEmpty        = errors.New("intent has no recipients")
	ErrInvalidAddress     = errors.New("address prefix or charset invalid")
	ErrNetworkMismatch    = errors.New("address network prefix does not match network")
	ErrInsufficientFunds  = errors.New("selectable utxos cannot cover spend plus fee")
	ErrCovenantOnlyFunds  = errors.New("only non-standard utxos available")
	ErrUtxoSpent          = errors.New("input no longer present on fresh sync")
	ErrBalanceMismatch    = errors.New("dry-run balance invariant violated")
	ErrPrincipalToTreasury = errors.New("non-fee output routed to treasury")
	ErrEndpointUnavailable = errors.New("endpoint pool exhausted")
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrWalletLocked       = errors.New("credential store locked")
	ErrSignFailed         = errors.New("signer rejected the transaction")
	ErrBroadcastFailed    = errors.New("broadcast failed after retries")
	ErrConfirmTimeout     = errors.New("confirmation deadline reached")
	ErrPrecondFailed      = errors.New("precondition violated")
)

// Kind is a taxonomy code, stable across releases and safe to compare by value.
type Kind string

const (
	KindAmountTooSmall      Kind = "AmountTooSmall"
	KindIntentEmpty         Kind = "IntentEmpty"
	KindInvalidAddress      Kind = "InvalidAddress"
	KindNetworkMismatch     Kind = "NetworkMismatch"
	KindInsufficientFunds   Kind = "InsufficientFunds"
	KindCovenantOnlyFunds   Kind = "CovenantOnlyFunds"
	KindUtxoSpent           Kind = "UtxoSpent"
	KindBalanceMismatch     Kind = "BalanceMismatch"
	KindPrincipalToTreasury Kind = "PrincipalToTreasury"
	KindEndpointUnavailable Kind = "EndpointUnavailable"
	KindCircuitOpen         Kind = "CircuitOpen"
	KindWalletLocked        Kind = "WalletLocked"
	KindSignFailed          Kind = "SignFailed"
	KindBroadcastFailed     Kind = "BroadcastFailed"
	KindConfirmTimeout      Kind = "ConfirmTimeout"
	KindPrecondFailed       Kind = "PrecondFailed"
)

var sentinelByKind = map[Kind]error{
	KindAmountTooSmall:      ErrAmountTooSmall,
	KindIntentEmpty:         ErrIntentEmpty,
	KindInvalidAddress:      ErrInvalidAddress,
	KindNetworkMismatch:     ErrNetworkMismatch,
	KindInsufficientFunds:   ErrInsufficientFunds,
	KindCovenantOnlyFunds:   ErrCovenantOnlyFunds,
	KindUtxoSpent:           ErrUtxoSpent,
	KindBalanceMismatch:     ErrBalanceMismatch,
	KindPrincipalToTreasury: ErrPrincipalToTreasury,
	KindEndpointUnavailable: ErrEndpointUnavailable,
	KindCircuitOpen:         ErrCircuitOpen,
	KindWalletLocked:        ErrWalletLocked,
	KindSignFailed:          ErrSignFailed,
	KindBroadcastFailed:     ErrBroadcastFailed,
	KindConfirmTimeout:      ErrConfirmTimeout,
	KindPrecondFailed:       ErrPrecondFailed,
}

// Sentinel returns the sentinel error backing a taxonomy kind.
func Sentinel(k Kind) error {
	if err, ok := sentinelByKind[k]; ok {
		return err
	}
	return errors.New(string(k))
}

// Stage identifies which pipeline stage raised an ExecutionError.
type Stage string

const (
	StageBuild      Stage = "Build"
	StageValidate   Stage = "Validate"
	StageSign       Stage = "Sign"
	StageBroadcast  Stage = "Broadcast"
	StageReconcile  Stage = "Reconcile"
)

// ExecutionError is the error type the kernel raises out of execute_intent.
// It carries enough context — stage, taxonomy kind, last known txid/endpoint —
// for a caller to produce a short message without a second RPC call.
type ExecutionError struct {
	Stage    Stage
	Kind     Kind
	Cause    error
	TxID     string
	Endpoint string
}

func (e *ExecutionError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s): %v", e.Stage, e.Kind, e.TxID, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// New builds an ExecutionError for a stage/kind/cause triple.
func New(stage Stage, kind Kind, cause error) *ExecutionError {
	if cause == nil {
		cause = Sentinel(kind)
	}
	return &ExecutionError{Stage: stage, Kind: kind, Cause: cause}
}

// WithTx attaches the tx id to an ExecutionError, returning the same pointer.
func (e *ExecutionError) WithTx(txID string) *ExecutionError {
	e.TxID = txID
	return e
}

// WithEndpoint attaches the last-known endpoint to an ExecutionError.
func (e *ExecutionError) WithEndpoint(endpoint string) *ExecutionError {
	e.Endpoint = endpoint
	return e
}

// As reports whether err is (or wraps) an *ExecutionError, extracting it into target.
func As(err error, target **ExecutionError) bool {
	return errors.As(err, target)
}
