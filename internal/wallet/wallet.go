// Package wallet holds the gateway's signing wallet. The browser front-end
// delegates signing to an extension; server-side the equivalent is a keypair
// loaded from the environment behind a small interface, so handlers and the
// orchestrator never touch key material directly and tests can substitute a
// fake signer.
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"dappshunt/api-gateway/config"
)

// Wallet is the signing capability the donation orchestrator needs.
type Wallet interface {
	// Connected reports whether a keypair is loaded and able to sign.
	Connected() bool
	PublicKey() solana.PublicKey
	// SignTransaction signs tx in place. A refusal by the signer is an
	// ordinary error, not a fatal one.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairWallet signs with a locally held private key.
type KeypairWallet struct {
	key solana.PrivateKey
	log *logrus.Logger
}

// NewKeypairWallet loads the donor keypair named by the configuration:
// a base58 secret key takes precedence, then a solana-keygen file. When
// neither is configured it returns a disconnected wallet rather than an
// error, so the rest of the gateway still serves read-only traffic.
func NewKeypairWallet(cfg *config.Config, log *logrus.Logger) (*KeypairWallet, error) {
	switch {
	case cfg.DonorSecretKey != "":
		key, err := solana.PrivateKeyFromBase58(cfg.DonorSecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DONOR_SECRET_KEY: %w", err)
		}
		log.WithField("public_key", key.PublicKey().String()).Info("Donor wallet loaded")
		return &KeypairWallet{key: key, log: log}, nil

	case cfg.DonorKeygenFile != "":
		key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.DonorKeygenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load keygen file: %w", err)
		}
		log.WithField("public_key", key.PublicKey().String()).Info("Donor wallet loaded")
		return &KeypairWallet{key: key, log: log}, nil
	}

	log.Warn("No donor keypair configured; wallet is disconnected and donations will be rejected")
	return &KeypairWallet{log: log}, nil
}

// Connected reports whether a keypair was loaded.
func (w *KeypairWallet) Connected() bool {
	return len(w.key) > 0
}

// PublicKey returns the wallet's public key. Zero value when disconnected.
func (w *KeypairWallet) PublicKey() solana.PublicKey {
	if !w.Connected() {
		return solana.PublicKey{}
	}
	return w.key.PublicKey()
}

// SignTransaction signs tx with the held keypair.
func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !w.Connected() {
		return fmt.Errorf("wallet not connected")
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
