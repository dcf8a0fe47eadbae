// Package store adapts the external tabular database (Supabase PostgREST)
// behind the interfaces the handlers and the donation orchestrator consume.
// Every lookup is a parameterized filter-builder call; no query string is
// ever assembled from user input.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"dappshunt/api-gateway/config"
	"dappshunt/api-gateway/models"
)

const projectsTable = "projects"

// maxIncrementAttempts bounds the optimistic-concurrency retry loop on the
// funds-raised counter. Conflicts only happen when two donations to the same
// project land in the same instant, so a small bound is plenty.
const maxIncrementAttempts = 5

// ErrNotFound is returned when a lookup matches no project row.
var ErrNotFound = fmt.Errorf("project not found")

// ErrIncrementConflict is returned when the funds-raised update kept losing
// the optimistic-concurrency race and ran out of attempts.
var ErrIncrementConflict = fmt.Errorf("funds-raised update conflicted too many times")

// ProjectStore is the adapter over the projects table.
type ProjectStore struct {
	client *supa.Client
	log    *logrus.Logger
}

// NewProjectStore builds a store adapter from explicit configuration.
func NewProjectStore(cfg *config.Config, log *logrus.Logger) (*ProjectStore, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	client, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}

	return &ProjectStore{client: client, log: log}, nil
}

// ListApproved returns the publicly browsable projects, i.e. those whose
// status is Approved. Pending and Rejected rows never leave the store.
func (s *ProjectStore) ListApproved(ctx context.Context) ([]models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, _, err := s.client.From(projectsTable).
		Select("*", "", false).
		Eq("status", string(models.StatusApproved)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list approved projects: %w", err)
	}

	var projects []models.Project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal projects: %w", err)
	}
	return projects, nil
}

// GetBySlug fetches a single project by its slug.
func (s *ProjectStore) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, _, err := s.client.From(projectsTable).
		Select("*", "", false).
		Eq("slug", slug).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project %q: %w", slug, err)
	}

	var projects []models.Project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project %q: %w", slug, err)
	}
	if len(projects) == 0 {
		return nil, ErrNotFound
	}
	return &projects[0], nil
}

// ListByWallet returns every project owned by the given wallet address,
// regardless of status. This backs the owner dashboard.
func (s *ProjectStore) ListByWallet(ctx context.Context, wallet string) ([]models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var projects []models.Project
	_, err := s.client.From(projectsTable).
		Select("*", "", false).
		Eq("wallet", wallet).
		ExecuteTo(&projects)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for wallet: %w", err)
	}
	return projects, nil
}

// Create inserts a new submission. Status and funds raised are forced to
// their initial values here so no caller can submit a pre-approved project.
func (s *ProjectStore) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	row := map[string]interface{}{
		"name":         p.Name,
		"tagline":      p.Tagline,
		"description":  p.Description,
		"funding_goal": p.FundingGoal,
		"funds_raised": 0,
		"use_of_funds": p.UseOfFunds,
		"status":       string(models.StatusPending),
		"wallet":       p.Wallet,
		"slug":         p.Slug,
		"created_at":   now,
		"updated_at":   now,
	}
	if p.Repo != nil {
		row["repo"] = *p.Repo
	}
	if p.Demo != nil {
		row["demo"] = *p.Demo
	}
	if p.Social != nil {
		row["social"] = *p.Social
	}

	var results []models.Project
	_, err := s.client.From(projectsTable).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&results)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no record returned after insert, slug: %s", p.Slug)
	}

	s.log.WithFields(logrus.Fields{"slug": p.Slug, "wallet": p.Wallet}).Info("Project created")
	return &results[0], nil
}

// Update applies an owner edit. Every edit sends the project back through
// moderation: status is reset to Pending no matter what it was before.
func (s *ProjectStore) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields["status"] = string(models.StatusPending)
	fields["updated_at"] = time.Now()

	var results []models.Project
	_, err := s.client.From(projectsTable).
		Update(fields, "representation", "").
		Eq("id", id).
		ExecuteTo(&results)
	if err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", id, err)
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	s.log.WithField("project_id", id).Info("Project updated, status reset to Pending")
	return &results[0], nil
}

// IncrementFundsRaised adds amount to the project's funds-raised counter and
// returns the new total. The write is conditional on the counter still
// holding the value we just read, so two concurrent donations can never
// overwrite each other's increment; the loser re-reads and retries.
func (s *ProjectStore) IncrementFundsRaised(ctx context.Context, id string, amount float64) (float64, error) {
	for attempt := 1; attempt <= maxIncrementAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		current, err := s.readFundsRaised(id)
		if err != nil {
			return 0, err
		}
		newTotal := current + amount

		var results []models.Project
		_, err = s.client.From(projectsTable).
			Update(map[string]interface{}{
				"funds_raised": newTotal,
				"updated_at":   time.Now(),
			}, "representation", "").
			Eq("id", id).
			Eq("funds_raised", strconv.FormatFloat(current, 'f', -1, 64)).
			ExecuteTo(&results)
		if err != nil {
			return 0, fmt.Errorf("failed to increment funds raised for %s: %w", id, err)
		}
		if len(results) > 0 {
			s.log.WithFields(logrus.Fields{
				"project_id": id,
				"amount":     amount,
				"new_total":  newTotal,
				"attempt":    attempt,
			}).Info("Funds raised incremented")
			return results[0].FundsRaised, nil
		}

		// Zero rows matched: someone else moved the counter between our
		// read and write. Re-read and try again.
		s.log.WithFields(logrus.Fields{"project_id": id, "attempt": attempt}).
			Warn("Funds-raised increment conflicted, retrying")
	}
	return 0, ErrIncrementConflict
}

func (s *ProjectStore) readFundsRaised(id string) (float64, error) {
	body, _, err := s.client.From(projectsTable).
		Select("funds_raised", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to read funds raised for %s: %w", id, err)
	}

	var rows []struct {
		FundsRaised float64 `json:"funds_raised"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("failed to unmarshal funds raised for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return 0, ErrNotFound
	}
	return rows[0].FundsRaised, nil
}
