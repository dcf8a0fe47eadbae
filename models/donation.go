package models

import "time"

// DonationStatus tracks how far a donation got past on-chain confirmation.
type DonationStatus string

const (
	// DonationConfirmed means the transfer is confirmed on-chain but the
	// project's funds-raised counter has not absorbed it yet.
	DonationConfirmed DonationStatus = "confirmed"
	// DonationReconciling means one worker holds the receipt and is applying
	// the counter update. Only a confirmed receipt can be claimed, so the
	// increment is applied at most once no matter how often it is swept.
	DonationReconciling DonationStatus = "reconciling"
	// DonationReconciled means the counter update also succeeded.
	DonationReconciled DonationStatus = "reconciled"
)

// Donation is the receipt row written after every confirmed transfer. It is
// the source of truth the reconciliation sweep works from: a receipt stuck in
// the confirmed state marks a counter update that still needs to happen.
type Donation struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Amount    float64        `json:"amount"` // USD amount as entered by the donor
	BaseUnits uint64         `json:"base_units"`
	Signature string         `json:"signature"` // transaction signature, base58
	Donor     string         `json:"donor"`
	Status    DonationStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}
