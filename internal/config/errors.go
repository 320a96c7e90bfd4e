package config

import "errors"

// ErrInvalidConfig is the sentinel wrapped by Config.Validate failures.
// The domain error taxonomy (AmountTooSmall, InsufficientFunds, ...) lives in
// internal/kerrors — this package only validates process configuration.
var ErrInvalidConfig = errors.New("invalid configuration")
