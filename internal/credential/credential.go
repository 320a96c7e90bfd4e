// Package credential models the kernel's one true external secret boundary:
// the CredentialStore collaborator, treated as an opaque store with
// Locked|Unlocked{mnemonic} states. The kernel never stores credentials
// itself — it only consumes this interface.
package credential

// Derivation describes how a private key is derived from the unlocked
// session's seed for a given from_address.
type Derivation struct {
	Purpose uint32
	Coin    uint32
	Account uint32
	Change  uint32
	Index   uint32
}

// Session is the in-memory unlocked credential: a mnemonic plus the
// derivation metadata needed to produce a signing key for an address. It
// must never be logged, persisted, or serialized to telemetry.
type Session struct {
	Mnemonic   string
	Passphrase string
	Derivation Derivation
	Address    string
}

// Store is the collaborator interface the Signer consumes.
// Implementations hold Locked|Unlocked state; GetSession returns (nil, nil)
// when locked.
type Store interface {
	// GetSession returns the current unlocked session, or (nil, nil) if locked.
	GetSession(fromAddress string) (*Session, error)

	// Locked reports whether the store currently has no unlocked session.
	Locked() bool
}
