package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrLockHeld       = errors.New("lock already held")
	ErrTxReverted     = errors.New("transaction reverted")
	ErrPartialRedeem  = errors.New("partial redeem")
	ErrNoSigner       = errors.New("no signer configured")
	ErrInvalidAddress = errors.New("invalid address")
	ErrNewAccount     = errors.New("new keystore account created")
)
