package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// ChainClient is the slice of Solana RPC the orchestrator needs. Declared
// here so tests can fake the network the same way handlers fake the store.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// ConfirmTransaction blocks until the signature reaches the confirmed
	// commitment level or the context/timeout expires.
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}

// RPCChain wraps the solana-go RPC client behind ChainClient.
type RPCChain struct {
	rpc            *rpc.Client
	log            *logrus.Logger
	pollInterval   time.Duration
	confirmTimeout time.Duration
}

// NewRPCChain connects to the given RPC endpoint.
func NewRPCChain(endpoint string, confirmTimeout time.Duration, log *logrus.Logger) *RPCChain {
	log.WithField("endpoint", endpoint).Info("Connecting to Solana RPC")
	return &RPCChain{
		rpc:            rpc.New(endpoint),
		log:            log,
		pollInterval:   2 * time.Second,
		confirmTimeout: confirmTimeout,
	}
}

// LatestBlockhash fetches a recent blockhash at the confirmed level.
func (c *RPCChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to fetch latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// AccountExists reports whether the account is present on-chain. Used to
// decide whether the recipient's token account must be created first.
func (c *RPCChain) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch account info: %w", err)
	}
	return out != nil && out.Value != nil, nil
}

// SendTransaction submits the signed transaction.
func (c *RPCChain) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// ConfirmTransaction polls signature status until the network reports the
// confirmed commitment level.
func (c *RPCChain) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", sig, ctx.Err())
		case <-ticker.C:
			out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				c.log.WithError(err).WithField("signature", sig.String()).
					Warn("Signature status poll failed")
				continue
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
