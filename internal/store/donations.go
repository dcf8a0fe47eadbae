package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"

	"dappshunt/api-gateway/config"
	"dappshunt/api-gateway/models"
)

const donationsTable = "donations"

// DonationStore persists donation receipts. It talks PostgREST directly with
// the service key, since receipts are written on the server's behalf rather
// than a user's.
type DonationStore struct {
	client *postgrest.Client
	log    *logrus.Logger
}

// NewDonationStore builds the receipt store from explicit configuration.
func NewDonationStore(cfg *config.Config, log *logrus.Logger) (*DonationStore, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	client := postgrest.NewClient(cfg.SupabaseURL+"/rest/v1", "", map[string]string{
		"apikey":        cfg.SupabaseKey,
		"Authorization": fmt.Sprintf("Bearer %s", cfg.SupabaseKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize PostgREST client: %w", client.ClientError)
	}

	return &DonationStore{client: client, log: log}, nil
}

// CreateDonation writes a receipt for a confirmed on-chain transfer. This
// happens before the funds-raised counter moves, so a crash between the two
// leaves a confirmed receipt behind for the reconciliation sweep.
func (s *DonationStore) CreateDonation(ctx context.Context, d *models.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var results []models.Donation
	_, err := s.client.From(donationsTable).
		Insert(d, false, "", "representation", "").
		ExecuteTo(&results)
	if err != nil {
		return fmt.Errorf("failed to insert donation receipt: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("no record returned after insert, donation: %s", d.ID)
	}

	s.log.WithFields(logrus.Fields{
		"donation_id": d.ID,
		"project_id":  d.ProjectID,
		"signature":   d.Signature,
	}).Info("Donation receipt recorded")
	return nil
}

// ClaimDonation takes ownership of a confirmed receipt by moving it to
// reconciling. The status filter makes the transition conditional: if the
// receipt was already claimed by another worker the update matches no row and
// the claim is refused, so the counter increment runs at most once per receipt.
func (s *DonationStore) ClaimDonation(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var results []models.Donation
	_, err := s.client.From(donationsTable).
		Update(map[string]interface{}{
			"status":     string(models.DonationReconciling),
			"updated_at": time.Now(),
		}, "representation", "").
		Eq("id", id).
		Eq("status", string(models.DonationConfirmed)).
		ExecuteTo(&results)
	if err != nil {
		return false, fmt.Errorf("failed to claim donation %s: %w", id, err)
	}
	return len(results) > 0, nil
}

// ReleaseDonation hands a claimed receipt back to confirmed so a later sweep
// can retry it. Called when the counter increment fails after a claim.
func (s *DonationStore) ReleaseDonation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var results []models.Donation
	_, err := s.client.From(donationsTable).
		Update(map[string]interface{}{
			"status":     string(models.DonationConfirmed),
			"updated_at": time.Now(),
		}, "", "").
		Eq("id", id).
		Eq("status", string(models.DonationReconciling)).
		ExecuteTo(&results)
	if err != nil {
		return fmt.Errorf("failed to release donation %s: %w", id, err)
	}
	return nil
}

// MarkDonationReconciled flips a receipt to reconciled once the project's
// funds-raised counter reflects it.
func (s *DonationStore) MarkDonationReconciled(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var results []models.Donation
	_, err := s.client.From(donationsTable).
		Update(map[string]interface{}{
			"status":     string(models.DonationReconciled),
			"updated_at": time.Now(),
		}, "", "").
		Eq("id", id).
		ExecuteTo(&results)
	if err != nil {
		return fmt.Errorf("failed to mark donation %s reconciled: %w", id, err)
	}
	return nil
}

// ListUnreconciled returns receipts whose counter update is still owed.
func (s *DonationStore) ListUnreconciled(ctx context.Context) ([]models.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var donations []models.Donation
	_, err := s.client.From(donationsTable).
		Select("*", "", false).
		Eq("status", string(models.DonationConfirmed)).
		ExecuteTo(&donations)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreconciled donations: %w", err)
	}
	return donations, nil
}
