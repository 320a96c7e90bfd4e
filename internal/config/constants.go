package config

import "time"

// Network profile table.
const (
	AddressPrefixMainnet = "kaspa"
	AddressPrefixTestnet = "kaspatest"

	DefaultEndpointMainnet   = "https://api.kaspa.org"
	DefaultEndpointTestnet10 = "https://api-tn10.kaspa.org"
	DefaultEndpointTestnet11 = "https://api-tn11.kaspa.org"
	DefaultEndpointTestnet12 = "https://api-tn12.kaspa.org"
)

// AddressCharset is the 32-symbol bech32-style alphabet Kaspa addresses draw from.
const AddressCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

const (
	AddressPayloadMinLen = 12
	AddressPayloadMaxLen = 120
)

// Transaction mass formula coefficients.
const (
	MassBase       = 239
	MassPerInput   = 142
	MassPerOutput  = 51
	DefaultFeeRate = 1 // sompi/gram fallback when fee-estimate fetch fails
)

// Tunables, with their documented defaults. Config loads a KASPAX_-prefixed
// env var for each one, but the packages read these constants directly, so
// setting such an env var does not change their behaviour.
const (
	RequestTimeoutMS = 12_000
	MaxRetries       = 2
	RetryDelayBaseMS = 600

	CBTripThreshold = 4
	CBRecoverMS     = 30_000

	PoolCacheTTLMS = 5_000
	UtxoCacheTTLMS = 5_000

	TxFeeSafetyBPS = 11_500
	TxFeeMinSompi  = 1_000
	TxFeeMaxSompi  = 200_000_000

	PlatformFeeBPS = 30
	MinPlatformFee = 100_000
	MaxPlatformFee = 100_000_000

	ConfirmPollMS    = 1_000
	ConfirmTimeoutMS = 300_000

	// StartupProbeTimeoutMS bounds the one-shot health probe and
	// reconciliation scan that runs before the server starts accepting
	// connections, so a slow/unreachable endpoint can't hold up startup
	// indefinitely.
	StartupProbeTimeoutMS = 20_000

	RequireLocalSynced = true

	AuditMaxEvents = 600

	LocalNodeStatusCacheMS = 3_000
)

// Floors enforced regardless of configured overrides.
const (
	ConfirmPollFloorMS    = 250
	ConfirmTimeoutFloorMS = 1_000
)

func MillisDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// Server / logging / persistence ambient defaults.
const (
	ServerPort           = 8080
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 60 * time.Second
	ServerIdleTimeout    = 120 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 30 * time.Second

	LogDir         = "./logs"
	LogFilePattern = "txkernel-%s-%s.log"
	LogCleanPrefix = "txkernel-"
	LogMaxAgeDays  = 30

	DBPath          = "./data/txkernel-audit.sqlite"
	KVPath          = "./data/txkernel.kv"
	DBBusyTimeoutMS = 5_000
)

// KV namespaces.
const (
	NamespacePendingTxs  = "pending.txs.v1"
	NamespaceRPCHealth   = "rpc.health.v1"
	NamespaceRPCBreakers = "rpc.breakers.v1"
	NamespaceRPCProvider = "kaspa.rpc-provider.v1"
	NamespaceCustomRPC   = "kaspa.custom-rpc.v1"
	NamespaceAuditLog    = "execution.audit.v1"
	NamespaceAddressIdx  = "kaspa.address-index.v1"
)

// Provider presets for RPC pool resolution.
type ProviderPreset string

const (
	PresetOfficial ProviderPreset = "Official"
	PresetIgra     ProviderPreset = "Igra"
	PresetKasplex  ProviderPreset = "Kasplex"
	PresetCustom   ProviderPreset = "Custom"
	PresetLocal    ProviderPreset = "Local"
)

// HD derivation path components (SLIP-44 coin type 111111 for Kaspa).
const (
	BIP44Purpose  = 44
	KaspaCoinType = 111111
)

// Local-node injection reason strings.
const (
	ReasonLocalEnabledHealthy  = "local_node_enabled_and_healthy"
	ReasonLocalDisabled        = "local_node_disabled"
	ReasonLocalUnhealthy       = "local_node_unhealthy"
	ReasonLocalSyncing         = "local_node_syncing"
	ReasonLocalProfileMismatch = "local_profile_mismatch"
	ReasonLocalEndpointMissing = "local_endpoint_missing"
)
