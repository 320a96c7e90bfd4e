package credential

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kvstore"
)

// FileStore is a mnemonic-file-backed credential.Store. The mnemonic itself
// is read from disk fresh on every Unlock and never cached beyond the
// caller-controlled unlocked window, minimizing how long the secret spends
// in process memory.
//
// Address-to-derivation-index assignment is tracked separately in kv, since
// the kernel's UTXOs and pending transactions only ever carry an address
// string, not a derivation path.
type FileStore struct {
	mu               sync.Mutex
	mnemonicFilePath string
	passphrase       string
	kv               kvstore.KVStore

	unlocked bool
	session  *Session
}

// NewFileStore creates a locked FileStore. addresses are resolved to
// derivation indices through kv's NamespaceAddressIdx bucket.
func NewFileStore(mnemonicFilePath, passphrase string, kv kvstore.KVStore) *FileStore {
	return &FileStore{
		mnemonicFilePath: mnemonicFilePath,
		passphrase:       passphrase,
		kv:               kv,
	}
}

// RegisterAddress records the derivation index a given address was derived
// at, so a later GetSession(address) can recover its Derivation.
func (s *FileStore) RegisterAddress(address string, index uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], index)
	if err := s.kv.Set(config.NamespaceAddressIdx, address, buf[:]); err != nil {
		return fmt.Errorf("register address index: %w", err)
	}
	return nil
}

func (s *FileStore) addressIndex(address string) (uint32, error) {
	raw, ok, err := s.kv.Get(config.NamespaceAddressIdx, address)
	if err != nil {
		return 0, fmt.Errorf("look up address index: %w", err)
	}
	if !ok || len(raw) != 4 {
		return 0, ErrAddressNotRegistered
	}
	return binary.BigEndian.Uint32(raw), nil
}

// Unlock validates the mnemonic file is readable and well-formed, then opens
// the unlocked window. It does not keep the mnemonic text anywhere except in
// the in-memory Session returned by GetSession, which callers must treat as
// secret.
func (s *FileStore) Unlock() error {
	if s.mnemonicFilePath == "" {
		return ErrMnemonicFileNotSet
	}

	mnemonic, err := readMnemonicFromFile(s.mnemonicFilePath)
	if err != nil {
		return fmt.Errorf("unlock: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
	s.session = &Session{Mnemonic: mnemonic, Passphrase: s.passphrase}
	slog.Info("credential store unlocked")
	return nil
}

// Lock clears the in-memory mnemonic and returns to the locked state.
func (s *FileStore) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		zeroString(&s.session.Mnemonic)
		zeroString(&s.session.Passphrase)
		s.session = nil
	}
	s.unlocked = false
	slog.Info("credential store locked")
}

// Locked reports whether the store currently has no unlocked session.
func (s *FileStore) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unlocked
}

// GetSession returns the unlocked session carrying the Derivation resolved
// for fromAddress, or (nil, nil) if the store is locked.
func (s *FileStore) GetSession(fromAddress string) (*Session, error) {
	s.mu.Lock()
	unlocked := s.unlocked
	mnemonic := ""
	passphrase := ""
	if s.session != nil {
		mnemonic = s.session.Mnemonic
		passphrase = s.session.Passphrase
	}
	s.mu.Unlock()

	if !unlocked {
		return nil, nil
	}

	index, err := s.addressIndex(fromAddress)
	if err != nil {
		return nil, fmt.Errorf("get session for %s: %w", fromAddress, err)
	}

	return &Session{
		Mnemonic:   mnemonic,
		Passphrase: passphrase,
		Derivation: defaultDerivation(index),
		Address:    fromAddress,
	}, nil
}

// zeroString drops the reference to a secret string's backing array.
func zeroString(s *string) {
	*s = ""
}
