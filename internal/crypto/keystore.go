package crypto

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// KeystoreSigner signs with an unlocked keystore account.
type KeystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
	created bool
}

// OpenKeystore opens dir and unlocks its first account with password. A
// directory without accounts gets a new one, encrypted with password.
func OpenKeystore(dir, password string, scryptN, scryptP int, logger *slog.Logger) (*KeystoreSigner, error) {
	ks := keystore.NewKeyStore(dir, scryptN, scryptP)

	var account accounts.Account
	created := false
	if existing := ks.Accounts(); len(existing) > 0 {
		account = existing[0]
		if len(existing) > 1 {
			logger.Warn("keystore holds several accounts, using the first",
				slog.String("address", account.Address.Hex()),
				slog.Int("accounts", len(existing)),
			)
		}
	} else {
		acct, err := ks.NewAccount(password)
		if err != nil {
			return nil, fmt.Errorf("crypto/keystore: create account: %w", err)
		}
		account, created = acct, true
		logger.Info("keystore account created",
			slog.String("address", account.Address.Hex()),
			slog.String("path", account.URL.Path),
		)
	}

	if err := ks.Unlock(account, password); err != nil {
		return nil, fmt.Errorf("crypto/keystore: unlock %s: %w", account.Address.Hex(), err)
	}
	return &KeystoreSigner{ks: ks, account: account, created: created}, nil
}

// Address returns the keystore account's address.
func (k *KeystoreSigner) Address() common.Address {
	return k.account.Address
}

// Created reports whether OpenKeystore generated the account.
func (k *KeystoreSigner) Created() bool {
	return k.created
}

// SignTx signs tx with the unlocked account.
func (k *KeystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := k.ks.SignTx(k.account, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("crypto/keystore: sign tx: %w", err)
	}
	return signed, nil
}
