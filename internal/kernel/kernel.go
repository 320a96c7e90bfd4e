// Package kernel implements the deterministic Build→Validate→Sign→
// Broadcast→Reconcile pipeline that drives one intent through the
// canonical PendingTx state machine.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
	"github.com/kaspax/txkernel/internal/reconciler"
	"github.com/kaspax/txkernel/internal/rpc"
	"github.com/kaspax/txkernel/internal/telemetry"
	"github.com/kaspax/txkernel/internal/txbuilder"
)

// Signer is the subset of signer.Signer the kernel consumes.
type Signer interface {
	Sign(tx *kaspa.PendingTx) ([]byte, error)
}

// Broadcaster is the subset of rpc.Client the kernel consumes for the
// broadcast stage.
type Broadcaster interface {
	BroadcastTx(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, serializedTx json.RawMessage) (*rpc.BroadcastResult, error)
}

// TxStore is the subset of store.PendingTxStore the kernel persists
// lifecycle transitions through.
type TxStore interface {
	Save(tx *kaspa.PendingTx) error
	Get(id string) (*kaspa.PendingTx, bool, error)
}

// CacheInvalidator is the subset of utxo.Sync the kernel calls after a
// successful broadcast.
type CacheInvalidator interface {
	InvalidateCache(address string)
}

// Recipient is one (address, amount) pair in a multi-recipient intent.
type Recipient struct {
	Address string
	Amount  kaspa.Sompi
}

// Intent is ExecuteIntent's input. Every recipient becomes one output on
// the built transaction, in order, ahead of the treasury-fee and change
// outputs TxBuilder appends.
type Intent struct {
	FromAddress string
	Network     kaspa.Network
	Recipients  []Recipient
	AgentJobID  *string
	OpReturnHex *string
}

// Options configures one execute_intent call.
type Options struct {
	AwaitConfirmation bool
	ConfirmTimeoutMS  int
	PollIntervalMS    int
	TelemetryChannel  kaspa.TelemetryChannel
	RunID             string
	RPCOpts           rpc.ResolveOptions
	OnUpdate          func(stage kaspa.TelemetryStage, tx *kaspa.PendingTx)
}

// Kernel wires every collaborator execute_intent needs.
type Kernel struct {
	builder     *txbuilder.Builder
	signer      Signer
	broadcaster Broadcaster
	reconciler  *reconciler.Reconciler
	store       TxStore
	utxoCache   CacheInvalidator
	telemetry   *telemetry.Emitter
	clk         clock.Clock

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New wires a Kernel to its collaborators.
func New(builder *txbuilder.Builder, signer Signer, broadcaster Broadcaster, rec *reconciler.Reconciler, store TxStore, utxoCache CacheInvalidator, emitter *telemetry.Emitter, clk clock.Clock) *Kernel {
	return &Kernel{
		builder:     builder,
		signer:      signer,
		broadcaster: broadcaster,
		reconciler:  rec,
		store:       store,
		utxoCache:   utxoCache,
		telemetry:   emitter,
		clk:         clk,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing ExecuteIntent calls for the same
// from_address: concurrent intents for the same address coordinate over
// the UTXO lock set. ExecuteIntent takes this via TryLock, refusing a
// second concurrent call for the same address rather than queuing behind
// it — the same per-chain TryLock/409 pattern used elsewhere, generalized
// to "one intent at a time per from_address."
func (k *Kernel) lockFor(address string) *sync.Mutex {
	k.locksMu.Lock()
	defer k.locksMu.Unlock()
	m, ok := k.locks[address]
	if !ok {
		m = &sync.Mutex{}
		k.locks[address] = m
	}
	return m
}

// ExecuteIntent drives intent through Build→Validate→Sign→Broadcast→
// Reconcile, persisting and emitting telemetry at every stage.
func (k *Kernel) ExecuteIntent(ctx context.Context, intent Intent, opts Options) (*kaspa.PendingTx, error) {
	if len(intent.Recipients) == 0 {
		return nil, kerrors.ErrIntentEmpty
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	channel := opts.TelemetryChannel
	if channel == "" {
		channel = kaspa.ChannelManual
	}

	mu := k.lockFor(intent.FromAddress)
	if !mu.TryLock() {
		return nil, kerrors.New(kerrors.StageBuild, kerrors.KindPrecondFailed, nil)
	}
	defer mu.Unlock()

	tx, err := k.build(ctx, intent, runID, channel)
	if err != nil {
		return nil, err
	}
	notify(opts.OnUpdate, kaspa.StageBuild, tx)

	if err := k.validate(ctx, tx, runID, channel); err != nil {
		notify(opts.OnUpdate, kaspa.StageValidate, tx)
		return tx, err
	}
	notify(opts.OnUpdate, kaspa.StageValidate, tx)

	if err := k.sign(tx, runID, channel); err != nil {
		notify(opts.OnUpdate, kaspa.StageSign, tx)
		return tx, err
	}
	notify(opts.OnUpdate, kaspa.StageSign, tx)

	if err := k.broadcast(ctx, tx, opts.RPCOpts, runID, channel); err != nil {
		notify(opts.OnUpdate, kaspa.StageBroadcast, tx)
		return tx, err
	}
	notify(opts.OnUpdate, kaspa.StageBroadcast, tx)

	if !opts.AwaitConfirmation {
		return tx, nil
	}

	err = k.reconcile(ctx, tx, opts, runID, channel)
	notify(opts.OnUpdate, kaspa.StageReconcile, tx)
	return tx, err
}

func (k *Kernel) build(ctx context.Context, intent Intent, runID string, channel kaspa.TelemetryChannel) (*kaspa.PendingTx, error) {
	recipients := make([]txbuilder.Recipient, len(intent.Recipients))
	for i, r := range intent.Recipients {
		recipients[i] = txbuilder.Recipient{Address: r.Address, Amount: r.Amount}
	}
	tx, err := k.builder.Build(ctx, txbuilder.Intent{
		FromAddress: intent.FromAddress,
		Recipients:  recipients,
		Network:     intent.Network,
		AgentJobID:  intent.AgentJobID,
		OpReturnHex: intent.OpReturnHex,
	})
	if err != nil {
		k.emit(runID, channel, kaspa.StageBuild, kaspa.TelemetryFailed, intent.Network, nil, nil, err)
		return nil, err
	}

	if err := k.store.Save(tx); err != nil {
		return nil, err
	}
	k.emitBuildOk(runID, channel, tx)
	return tx, nil
}

// emitBuildOk emits the build-stage success event, flagging every input as
// script-class-unclassified: the RPC layer's classifyScript stub always
// reports ScriptClassStandard, so the builder never actually verified any
// input's script class before spending it.
func (k *Kernel) emitBuildOk(runID string, channel kaspa.TelemetryChannel, tx *kaspa.PendingTx) {
	if k.telemetry == nil {
		return
	}
	ev := k.telemetry.NewEvent(runID, channel, kaspa.StageBuild, kaspa.TelemetryOk, tx.Network)
	ev.TxID = &tx.ID
	ev.TxState = &tx.State
	if len(tx.Inputs) > 0 {
		ev.Context[telemetry.ScriptClassUnclassifiedWarning] = "true"
	}
	_ = k.telemetry.Emit(ev)
}

func (k *Kernel) validate(ctx context.Context, tx *kaspa.PendingTx, runID string, channel kaspa.TelemetryChannel) error {
	result := k.builder.DryRunValidate(ctx, tx)
	if !result.Valid {
		tx.State = kaspa.StateDryRunFail
		tx.Error = joinErrors(result.Errors)
		tx.FailureKind = string(kerrors.KindBalanceMismatch)
		_ = k.store.Save(tx)
		execErr := kerrors.New(kerrors.StageValidate, kerrors.KindBalanceMismatch, errors.New(tx.Error)).WithTx(tx.ID)
		k.emit(runID, channel, kaspa.StageValidate, kaspa.TelemetryFailed, tx.Network, &tx.ID, &tx.State, execErr)
		return execErr
	}

	tx.Fee = result.EstimatedFee
	if tx.Change != nil {
		tx.Change.Amount = result.ChangeAmount
	}
	tx.State = kaspa.StateDryRunOk
	if err := k.store.Save(tx); err != nil {
		return err
	}
	k.emit(runID, channel, kaspa.StageValidate, kaspa.TelemetryOk, tx.Network, &tx.ID, &tx.State, nil)
	return nil
}

func (k *Kernel) sign(tx *kaspa.PendingTx, runID string, channel kaspa.TelemetryChannel) error {
	payload, err := k.signer.Sign(tx)
	if err != nil {
		tx.State = kaspa.StateFailed
		tx.Error = err.Error()
		tx.FailureKind = string(kerrors.KindSignFailed)
		_ = k.store.Save(tx)
		execErr := kerrors.New(kerrors.StageSign, kerrors.KindSignFailed, err).WithTx(tx.ID)
		k.emit(runID, channel, kaspa.StageSign, kaspa.TelemetryFailed, tx.Network, &tx.ID, &tx.State, execErr)
		return execErr
	}

	tx.SignedTxPayload = payload
	signedAt := k.clk.Now()
	tx.SignedAt = &signedAt
	tx.State = kaspa.StateSigned
	if err := k.store.Save(tx); err != nil {
		return err
	}
	k.emit(runID, channel, kaspa.StageSign, kaspa.TelemetryOk, tx.Network, &tx.ID, &tx.State, nil)
	return nil
}

func (k *Kernel) broadcast(ctx context.Context, tx *kaspa.PendingTx, rpcOpts rpc.ResolveOptions, runID string, channel kaspa.TelemetryChannel) error {
	// Idempotency: a tx that already carries a txid (e.g. the process
	// restarted mid-broadcast) is never re-posted.
	if tx.TxID == "" {
		tx.State = kaspa.StateBroadcasting
		_ = k.store.Save(tx)

		result, err := k.broadcaster.BroadcastTx(ctx, tx.Network, rpcOpts, json.RawMessage(tx.SignedTxPayload))
		if err != nil {
			tx.State = kaspa.StateFailed
			tx.Error = err.Error()
			tx.FailureKind = string(kerrors.KindBroadcastFailed)
			_ = k.store.Save(tx)
			execErr := kerrors.New(kerrors.StageBroadcast, kerrors.KindBroadcastFailed, err).WithTx(tx.ID)
			k.emit(runID, channel, kaspa.StageBroadcast, kaspa.TelemetryFailed, tx.Network, &tx.ID, &tx.State, execErr)
			return execErr
		}

		tx.TxID = result.TxID
		broadcastAt := k.clk.Now()
		tx.BroadcastAt = &broadcastAt
		k.utxoCache.InvalidateCache(tx.FromAddress)
	}

	tx.State = kaspa.StateConfirming
	if err := k.store.Save(tx); err != nil {
		return err
	}
	k.emit(runID, channel, kaspa.StageBroadcast, kaspa.TelemetryOk, tx.Network, &tx.ID, &tx.State, nil)
	return nil
}

func (k *Kernel) reconcile(ctx context.Context, tx *kaspa.PendingTx, opts Options, runID string, channel kaspa.TelemetryChannel) error {
	err := k.reconciler.WaitForConfirmation(ctx, tx, reconciler.Options{
		Network:   tx.Network,
		RPCOpts:   opts.RPCOpts,
		TimeoutMS: opts.ConfirmTimeoutMS,
		PollMS:    opts.PollIntervalMS,
	})
	_ = k.store.Save(tx)

	if err != nil {
		tx.FailureKind = string(kerrors.KindConfirmTimeout)
		_ = k.store.Save(tx)
		execErr := kerrors.New(kerrors.StageReconcile, kerrors.KindConfirmTimeout, err).WithTx(tx.ID)
		k.emit(runID, channel, kaspa.StageReconcile, kaspa.TelemetryFailed, tx.Network, &tx.ID, &tx.State, execErr)
		return execErr
	}

	k.emit(runID, channel, kaspa.StageReconcile, kaspa.TelemetryOk, tx.Network, &tx.ID, &tx.State, nil)
	return nil
}

// Cancel marks tx Cancelled if it is still pre-Signed. A tx already Signed or
// later cannot be cancelled from here: broadcast's on-chain effect, once
// accepted by the server, cannot be rolled back.
func (k *Kernel) Cancel(tx *kaspa.PendingTx) error {
	switch tx.State {
	case kaspa.StateBuilding, kaspa.StateDryRunOk, kaspa.StateDryRunFail:
		tx.State = kaspa.StateCancelled
		return k.store.Save(tx)
	default:
		return kerrors.ErrPrecondFailed
	}
}

func (k *Kernel) emit(runID string, channel kaspa.TelemetryChannel, stage kaspa.TelemetryStage, status kaspa.TelemetryStatus, network kaspa.Network, txID *string, txState *kaspa.PendingTxState, cause error) {
	if k.telemetry == nil {
		return
	}
	ev := k.telemetry.NewEvent(runID, channel, stage, status, network)
	ev.TxID = txID
	ev.TxState = txState
	if cause != nil {
		msg := cause.Error()
		ev.Error = &msg
	}
	// Telemetry writes are best-effort regardless of whether the pipeline
	// succeeded or failed: a logging failure here is swallowed, not returned.
	_ = k.telemetry.Emit(ev)
}

func notify(onUpdate func(stage kaspa.TelemetryStage, tx *kaspa.PendingTx), stage kaspa.TelemetryStage, tx *kaspa.PendingTx) {
	if onUpdate != nil {
		onUpdate(stage, tx)
	}
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
