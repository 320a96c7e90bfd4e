package credential

import "errors"

var (
	ErrInvalidMnemonic     = errors.New("invalid mnemonic")
	ErrMnemonicFileNotSet  = errors.New("mnemonic file path not configured")
	ErrKeyDerivation       = errors.New("key derivation failed")
	ErrAddressNotRegistered = errors.New("address has no known derivation index")
)
