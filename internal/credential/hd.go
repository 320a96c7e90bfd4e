package credential

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/kaspax/txkernel/internal/config"
)

// hdParams is the chaincfg.Params passed to hdkeychain for its extended-key
// version bytes. Kaspa has no registered chaincfg network, and those bytes
// never leave this process (no xprv/xpub is ever serialized or persisted),
// so the mainnet bitcoin parameters serve as an arbitrary but stable carrier.
var hdParams = &chaincfg.MainNetParams

// validateMnemonic validates a BIP-39 mnemonic phrase (24 words).
func validateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(mnemonic) {
		return fmt.Errorf("validate mnemonic: %w", ErrInvalidMnemonic)
	}
	words := strings.Fields(mnemonic)
	if len(words) != 24 {
		return fmt.Errorf("expected 24-word mnemonic, got %d words: %w", len(words), ErrInvalidMnemonic)
	}
	return nil
}

// readMnemonicFromFile reads a mnemonic from a file, trims whitespace, and validates it.
func readMnemonicFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read mnemonic file %q: %w", path, err)
	}
	mnemonic := strings.TrimSpace(string(data))
	if mnemonic == "" {
		return "", fmt.Errorf("mnemonic file %q is empty: %w", path, ErrInvalidMnemonic)
	}
	if err := validateMnemonic(mnemonic); err != nil {
		return "", fmt.Errorf("mnemonic file %q: %w", path, err)
	}
	slog.Debug("mnemonic read and validated from file")
	return mnemonic, nil
}

// MnemonicToSeed converts a BIP-39 mnemonic to a 64-byte seed.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("mnemonic to seed: %w", err)
	}
	return seed, nil
}

// DeriveMasterKey derives a BIP-32 master extended key from a seed.
func DeriveMasterKey(seed []byte) (*hdkeychain.ExtendedKey, error) {
	masterKey, err := hdkeychain.NewMaster(seed, hdParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return masterKey, nil
}

// DeriveChildPrivKey walks m/purpose'/coin'/0'/0/index and returns the leaf
// private key. The caller must zero it after use.
func DeriveChildPrivKey(masterKey *hdkeychain.ExtendedKey, d Derivation) (*btcec.PrivateKey, error) {
	purpose, err := masterKey.Derive(hdkeychain.HardenedKeyStart + d.Purpose)
	if err != nil {
		return nil, fmt.Errorf("derive purpose key: %w", err)
	}
	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + d.Coin)
	if err != nil {
		return nil, fmt.Errorf("derive coin key: %w", err)
	}
	account, err := coin.Derive(hdkeychain.HardenedKeyStart + d.Account)
	if err != nil {
		return nil, fmt.Errorf("derive account key: %w", err)
	}
	change, err := account.Derive(d.Change)
	if err != nil {
		return nil, fmt.Errorf("derive change key: %w", err)
	}
	child, err := change.Derive(d.Index)
	if err != nil {
		return nil, fmt.Errorf("derive child key at index %d: %w", d.Index, err)
	}
	privKey, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key at index %d: %w", d.Index, err)
	}
	return privKey, nil
}

// defaultDerivation returns the standard m/44'/111111'/0'/0/index path for a
// given leaf index (SLIP-44 coin type 111111, registered for Kaspa).
func defaultDerivation(index uint32) Derivation {
	return Derivation{
		Purpose: config.BIP44Purpose,
		Coin:    config.KaspaCoinType,
		Account: 0,
		Change:  0,
		Index:   index,
	}
}

