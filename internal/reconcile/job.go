package reconcile

import (
	"context"
	"fmt"
	"time"

	"dappshunt/api-gateway/internal/donation"
	"dappshunt/api-gateway/models"
)

// jobTimeout bounds one reconciliation attempt end to end.
const jobTimeout = 30 * time.Second

// ReceiptJob retries the funds-raised increment for one confirmed receipt
// and marks it reconciled on success.
type ReceiptJob struct {
	Receipt  models.Donation
	Funds    donation.FundsStore
	Receipts donation.ReceiptStore
}

// ID returns the receipt's donation id.
func (j *ReceiptJob) ID() string {
	return j.Receipt.ID
}

// Execute claims the receipt, applies its amount to the project counter,
// then flips it to reconciled. The claim is a conditional status transition,
// so when two sweeps enqueue the same receipt only one job gets past it; the
// other is a no-op. If the increment fails the claim is released and the
// receipt stays confirmed, so a later sweep retries.
func (j *ReceiptJob) Execute() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	claimed, err := j.Receipts.ClaimDonation(ctx, j.Receipt.ID)
	if err != nil {
		return fmt.Errorf("claim for donation %s: %w", j.Receipt.ID, err)
	}
	if !claimed {
		// Another worker (or the orchestrator) owns this receipt.
		return nil
	}

	if _, err := j.Funds.IncrementFundsRaised(ctx, j.Receipt.ProjectID, j.Receipt.Amount); err != nil {
		if relErr := j.Receipts.ReleaseDonation(ctx, j.Receipt.ID); relErr != nil {
			return fmt.Errorf("increment for donation %s: %w (release also failed: %v)", j.Receipt.ID, err, relErr)
		}
		return fmt.Errorf("increment for donation %s: %w", j.Receipt.ID, err)
	}
	if err := j.Receipts.MarkDonationReconciled(ctx, j.Receipt.ID); err != nil {
		// Keep the claim: the counter already moved, and a reconciling
		// receipt is never swept again, so the increment stays single.
		return fmt.Errorf("mark reconciled for donation %s: %w", j.Receipt.ID, err)
	}
	return nil
}
