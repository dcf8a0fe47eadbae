package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"dappshunt/api-gateway/models"
)

// ProjectStore defines the operations handlers expect from the project
// store adapter. This allows for decoupling and easier testing; the
// concrete implementation lives in internal/store.
type ProjectStore interface {
	ListApproved(ctx context.Context) ([]models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	ListByWallet(ctx context.Context, wallet string) ([]models.Project, error)
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*models.Project, error)
}

// Donator is the donation orchestrator as seen from the handlers.
type Donator interface {
	Donate(ctx context.Context, project *models.Project, amountUSD float64) (*models.Donation, float64, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Store    ProjectStore
	Donator  Donator
	Logger   *logrus.Logger
	Validate *validator.Validate
}

// NewApplicationHandler creates a new ApplicationHandler with the given
// dependencies.
func NewApplicationHandler(store ProjectStore, donator Donator, logger *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		Store:    store,
		Donator:  donator,
		Logger:   logger,
		Validate: validator.New(),
	}
}
