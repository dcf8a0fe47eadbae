// Package donation implements the transfer-and-reconcile flow: build an SPL
// token transfer (creating the recipient's token account when absent), have
// the wallet sign it, submit it, wait for confirmation, then move the
// project's funds-raised counter in the external store.
package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dappshunt/api-gateway/internal/wallet"
	"dappshunt/api-gateway/models"
)

// Precondition failures, rejected before any network call.
var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrInvalidAmount      = errors.New("donation amount must be positive")
	ErrBadRecipient       = errors.New("project wallet is not a valid public key")
)

// FundsStore is the slice of the project store the orchestrator needs.
type FundsStore interface {
	IncrementFundsRaised(ctx context.Context, projectID string, amount float64) (float64, error)
}

// ReceiptStore records donation receipts and their reconciliation state.
// ClaimDonation is a conditional confirmed-to-reconciling transition that
// succeeds for exactly one caller, so a receipt's counter increment is
// applied at most once even when the orchestrator and a sweep race.
type ReceiptStore interface {
	CreateDonation(ctx context.Context, d *models.Donation) error
	ClaimDonation(ctx context.Context, id string) (bool, error)
	ReleaseDonation(ctx context.Context, id string) error
	MarkDonationReconciled(ctx context.Context, id string) error
}

// Orchestrator coordinates wallet, chain, and store for one donation.
type Orchestrator struct {
	wallet   wallet.Wallet
	chain    ChainClient
	funds    FundsStore
	receipts ReceiptStore
	mint     solana.PublicKey
	log      *logrus.Logger
}

// NewOrchestrator wires the orchestrator's collaborators. mint is the
// base58 address of the stablecoin mint donations are denominated in.
func NewOrchestrator(w wallet.Wallet, chain ChainClient, funds FundsStore, receipts ReceiptStore, mint string, log *logrus.Logger) (*Orchestrator, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}
	return &Orchestrator{
		wallet:   w,
		chain:    chain,
		funds:    funds,
		receipts: receipts,
		mint:     mintKey,
		log:      log,
	}, nil
}

// Donate moves amountUSD of the stablecoin from the gateway wallet to the
// project owner and reconciles the project's funds-raised counter. It
// returns the receipt and the counter's new total.
//
// The transfer itself is irreversible. If the counter update fails after
// confirmation, the receipt is left in the confirmed state and the
// reconciliation sweep retries the update later; the donation is never
// silently lost.
func (o *Orchestrator) Donate(ctx context.Context, project *models.Project, amountUSD float64) (*models.Donation, float64, error) {
	if o.wallet == nil || !o.wallet.Connected() {
		return nil, 0, ErrWalletNotConnected
	}
	if amountUSD <= 0 {
		return nil, 0, ErrInvalidAmount
	}
	recipient, err := solana.PublicKeyFromBase58(project.Wallet)
	if err != nil {
		return nil, 0, ErrBadRecipient
	}

	donor := o.wallet.PublicKey()
	baseUnits := ToBaseUnits(amountUSD, USDCDecimals)

	log := o.log.WithFields(logrus.Fields{
		"project_id": project.ID.String(),
		"slug":       project.Slug,
		"amount_usd": amountUSD,
		"base_units": baseUnits,
	})

	// Associated token accounts are derived, not looked up.
	donorATA, _, err := solana.FindAssociatedTokenAddress(donor, o.mint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to derive donor token account: %w", err)
	}
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, o.mint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to derive recipient token account: %w", err)
	}

	exists, err := o.chain.AccountExists(ctx, recipientATA)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check recipient token account: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		log.Info("Recipient token account missing, prepending create instruction")
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(donor, recipient, o.mint).Build())
	}
	instructions = append(instructions,
		token.NewTransferInstruction(baseUnits, donorATA, recipientATA, donor, nil).Build())

	blockhash, err := o.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(donor))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build transaction: %w", err)
	}

	// The signer may refuse; that is an ordinary failure, not a fatal one.
	if err := o.wallet.SignTransaction(ctx, tx); err != nil {
		return nil, 0, fmt.Errorf("signing rejected: %w", err)
	}

	sig, err := o.chain.SendTransaction(ctx, tx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to submit transaction: %w", err)
	}
	log = log.WithField("signature", sig.String())

	if err := o.chain.ConfirmTransaction(ctx, sig); err != nil {
		// The transfer may still land after this point; without a receipt
		// there is nothing to reconcile, so surface the failure as-is.
		return nil, 0, fmt.Errorf("confirmation failed: %w", err)
	}
	log.Info("Transfer confirmed on-chain")

	receipt := &models.Donation{
		ID:        uuid.NewString(),
		ProjectID: project.ID.String(),
		Amount:    amountUSD,
		BaseUnits: baseUnits,
		Signature: sig.String(),
		Donor:     donor.String(),
		Status:    models.DonationConfirmed,
		CreatedAt: time.Now(),
	}
	if err := o.receipts.CreateDonation(ctx, receipt); err != nil {
		// Funds moved but we could not even record it. This is the one
		// state the sweep cannot repair, so log loudly before surfacing.
		log.WithError(err).Error("Confirmed transfer has no receipt; manual reconciliation required")
		return nil, 0, fmt.Errorf("transfer confirmed but receipt not recorded: %w", err)
	}

	claimed, err := o.receipts.ClaimDonation(ctx, receipt.ID)
	if err != nil {
		// Receipt stays confirmed; the reconciliation sweep picks it up.
		log.WithError(err).Warn("Could not claim receipt, deferring to reconciliation")
		return receipt, 0, fmt.Errorf("transfer confirmed, funds-raised update deferred: %w", err)
	}
	if !claimed {
		// A sweep already owns the receipt we just wrote; let it finish.
		log.Warn("Receipt already claimed, deferring to reconciliation")
		return receipt, 0, nil
	}

	newTotal, err := o.funds.IncrementFundsRaised(ctx, project.ID.String(), amountUSD)
	if err != nil {
		// Hand the claim back so the sweep can retry the increment.
		log.WithError(err).Warn("Funds-raised update failed, deferring to reconciliation")
		if relErr := o.receipts.ReleaseDonation(ctx, receipt.ID); relErr != nil {
			log.WithError(relErr).Error("Receipt stuck reconciling with counter not updated; manual reconciliation required")
		}
		return receipt, 0, fmt.Errorf("transfer confirmed but funds-raised update failed: %w", err)
	}

	if err := o.receipts.MarkDonationReconciled(ctx, receipt.ID); err != nil {
		// The counter already moved. The claim is deliberately not released:
		// a reconciling receipt is invisible to the sweep, so the increment
		// cannot be applied a second time. Only the receipt status is stale.
		log.WithError(err).Error("Failed to mark receipt reconciled after counter update")
	} else {
		receipt.Status = models.DonationReconciled
	}

	log.WithField("new_total", newTotal).Info("Donation reconciled")
	return receipt, newTotal, nil
}
