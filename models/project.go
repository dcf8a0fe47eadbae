package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the moderation state of a listed project.
type ProjectStatus string

const (
	StatusPending  ProjectStatus = "Pending"
	StatusApproved ProjectStatus = "Approved"
	StatusRejected ProjectStatus = "Rejected"
)

// Project represents one row in the projects table. Submissions start out
// Pending with zero funds raised; only Approved projects are listed publicly.
type Project struct {
	ID          uuid.UUID     `json:"id,omitempty"`
	Name        string        `json:"name"`
	Tagline     string        `json:"tagline"`
	Description string        `json:"description"`
	Repo        *string       `json:"repo,omitempty"`   // Use a pointer for nullable TEXT fields
	Demo        *string       `json:"demo,omitempty"`   // Use a pointer for nullable TEXT fields
	Social      *string       `json:"social,omitempty"` // Use a pointer for nullable TEXT fields
	FundingGoal float64       `json:"funding_goal"`
	FundsRaised float64       `json:"funds_raised"`
	UseOfFunds  string        `json:"use_of_funds"`
	Status      ProjectStatus `json:"status"`
	Wallet      string        `json:"wallet"` // owner's Solana public key, base58
	Slug        string        `json:"slug"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Progress returns the funding progress as a percentage. Over-funded
// projects report more than 100; the value is deliberately not clamped.
func (p *Project) Progress() float64 {
	if p.FundingGoal <= 0 {
		return 0
	}
	return p.FundsRaised / p.FundingGoal * 100
}

// OwnedBy reports whether the given wallet address owns this project.
func (p *Project) OwnedBy(wallet string) bool {
	return wallet != "" && p.Wallet == wallet
}
