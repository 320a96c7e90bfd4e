// Package kaspa holds the core data model of the execution kernel: amounts,
// networks, addresses, UTXOs, pending transactions, endpoint health, circuit
// breakers, and telemetry events.
package kaspa

import "time"

// Sompi is the indivisible unit: 10^8 sompi = 1 KAS. All consensus math is
// done in this integer type — floating point is forbidden.
type Sompi int64

const SompiPerKAS Sompi = 100_000_000

// KASToSompi converts a KAS amount, given as its whole part, its fractional
// digits as an integer and the count of those digits (0 to 8; more returns
// ErrTooManyFractionalDigits), into an exact Sompi value, never routing
// through floating point.
func KASToSompi(wholeKAS, fracDigits int64, fracLen int) (Sompi, error) {
	if fracLen < 0 || fracLen > 8 {
		return 0, ErrTooManyFractionalDigits
	}
	scale := int64(1)
	for i := 0; i < 8-fracLen; i++ {
		scale *= 10
	}
	return Sompi(wholeKAS*int64(SompiPerKAS) + fracDigits*scale), nil
}

// Network is an enumerated network tag.
type Network string

const (
	Mainnet   Network = "Mainnet"
	Testnet10 Network = "Testnet10"
	Testnet11 Network = "Testnet11"
	Testnet12 Network = "Testnet12"
)

// AddressPrefix returns the canonical bech32-like prefix for a network.
func (n Network) AddressPrefix() string {
	if n == Mainnet {
		return "kaspa"
	}
	return "kaspatest"
}

// Valid reports whether n is one of the four known networks.
func (n Network) Valid() bool {
	switch n {
	case Mainnet, Testnet10, Testnet11, Testnet12:
		return true
	}
	return false
}

// ScriptClass distinguishes standard (spendable) from covenant-restricted
// outputs. Classification is currently a stub: see ScriptClassStandard
// default below.
type ScriptClass string

const (
	ScriptClassStandard ScriptClass = "Standard"
	ScriptClassCovenant ScriptClass = "Covenant"
)

// Outpoint identifies a UTXO: (txid, output_index).
type Outpoint struct {
	TxID        string
	OutputIndex uint32
}

// Key returns the canonical "txid:index" identity key used for locked-set
// membership checks.
func (o Outpoint) Key() string {
	return o.TxID + ":" + itoa(int64(o.OutputIndex))
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// UTXO is an unspent transaction output.
type UTXO struct {
	Outpoint        Outpoint
	OwnerAddress    string
	Amount          Sompi
	ScriptPublicKey []byte
	ScriptVersion   int
	ScriptClass     ScriptClass
	BlockDAAScore   uint64
	IsCoinbase      bool
}

// UtxoSet is an address's authoritative spendable view.
type UtxoSet struct {
	OwnerAddress     string
	UTXOs            []UTXO
	ConfirmedBalance Sompi
	PendingOutbound  Sompi
	LastSyncAt       time.Time
}

// PendingTxState is a state in the execution kernel's canonical state
// machine.
type PendingTxState string

const (
	StateBuilding     PendingTxState = "Building"
	StateDryRunOk     PendingTxState = "DryRunOk"
	StateDryRunFail   PendingTxState = "DryRunFail"
	StateSigned       PendingTxState = "Signed"
	StateBroadcasting PendingTxState = "Broadcasting"
	StateConfirming   PendingTxState = "Confirming"
	StateConfirmed    PendingTxState = "Confirmed"
	StateFailed       PendingTxState = "Failed"
	StateCancelled    PendingTxState = "Cancelled"
)

// NonTerminalStates are the states under which a UTXO input is still
// locked.
var NonTerminalStates = map[PendingTxState]bool{
	StateBuilding:     true,
	StateDryRunOk:     true,
	StateSigned:       true,
	StateBroadcasting: true,
	StateConfirming:   true,
}

// Output is a (address, amount) pair.
type Output struct {
	Address string
	Amount  Sompi
}

// ReceiptBackendSource identifies which backend tier served a reconciliation probe.
type ReceiptBackendSource string

const (
	BackendLocal  ReceiptBackendSource = "Local"
	BackendRemote ReceiptBackendSource = "Remote"
)

// PendingTx is the durable record of one intent through its lifecycle.
type PendingTx struct {
	ID          string
	State       PendingTxState
	FromAddress string
	Network     Network
	Inputs      []UTXO
	Outputs     []Output
	Change      *Output

	Fee         Sompi
	PlatformFee *Sompi

	BuiltAt     time.Time
	SignedAt    *time.Time
	BroadcastAt *time.Time
	ConfirmedAt *time.Time

	TxID             string
	Confirmations    int
	AcceptingBlockHash *string

	ReceiptCheckedAt       *time.Time
	ReceiptProbeAttempts   int
	ReceiptSourceBackend   *ReceiptBackendSource
	ReceiptSourceEndpoint  *string

	Error            string
	FailureKind      string
	SignedTxPayload  []byte

	AgentJobID  *string
	OpReturnHex *string
}

// SumInputs returns Σ inputs.amount.
func (p *PendingTx) SumInputs() Sompi {
	var sum Sompi
	for _, u := range p.Inputs {
		sum += u.Amount
	}
	return sum
}

// SumOutputs returns Σ outputs.amount.
func (p *PendingTx) SumOutputs() Sompi {
	var sum Sompi
	for _, o := range p.Outputs {
		sum += o.Amount
	}
	return sum
}

// ChangeAmount returns the change amount, or 0 if there is no change output.
func (p *PendingTx) ChangeAmount() Sompi {
	if p.Change == nil {
		return 0
	}
	return p.Change.Amount
}

// BalanceInvariantHolds checks Σ inputs == Σ outputs + change + fee.
func (p *PendingTx) BalanceInvariantHolds() bool {
	return p.SumInputs() == p.SumOutputs()+p.ChangeAmount()+p.Fee
}

// LockedKeys returns the (txid,index) keys this tx locks while non-terminal.
func (p *PendingTx) LockedKeys() []string {
	keys := make([]string, 0, len(p.Inputs))
	for _, u := range p.Inputs {
		keys = append(keys, u.Outpoint.Key())
	}
	return keys
}

// EndpointHealth is per-base-URL health tracking.
type EndpointHealth struct {
	BaseURL          string
	LastOkAt         *time.Time
	LastFailAt       *time.Time
	ConsecutiveFails int
	LastLatencyMS    int64
	LastStatus       int
	LastError        string
}

// BreakerState is a circuit breaker's three states.
type BreakerState string

const (
	BreakerClosed   BreakerState = "Closed"
	BreakerOpen     BreakerState = "Open"
	BreakerHalfOpen BreakerState = "HalfOpen"
)

// CircuitBreakerState is per-base-URL breaker state.
type CircuitBreakerState struct {
	BaseURL  string
	State    BreakerState
	Failures int
	OpenedAt *time.Time
}

// TelemetryChannel identifies the originator of an intent.
type TelemetryChannel string

const (
	ChannelManual TelemetryChannel = "Manual"
	ChannelSwap   TelemetryChannel = "Swap"
	ChannelAgent  TelemetryChannel = "Agent"
)

// TelemetryStage mirrors the kernel's pipeline stages.
type TelemetryStage string

const (
	StageBuild     TelemetryStage = "Build"
	StageValidate  TelemetryStage = "Validate"
	StageSign      TelemetryStage = "Sign"
	StageBroadcast TelemetryStage = "Broadcast"
	StageReconcile TelemetryStage = "Reconcile"
)

// TelemetryStatus is Ok or Failed.
type TelemetryStatus string

const (
	TelemetryOk     TelemetryStatus = "Ok"
	TelemetryFailed TelemetryStatus = "Failed"
)

// TelemetryEvent is one append-only record per kernel stage.
type TelemetryEvent struct {
	ID             string
	RunID          string
	Channel        TelemetryChannel
	Stage          TelemetryStage
	Status         TelemetryStatus
	Timestamp      time.Time
	Network        Network
	TxID           *string
	TxState        *PendingTxState
	BackendSource  *ReceiptBackendSource
	BackendReason  *string
	BackendEndpoint *string
	Error          *string
	Context        map[string]string
}
