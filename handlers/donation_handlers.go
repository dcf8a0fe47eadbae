package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dappshunt/api-gateway/internal/donation"
	"dappshunt/api-gateway/internal/store"
	"dappshunt/api-gateway/models"
	"dappshunt/api-gateway/utils"
)

// DonateRequest is the request body for a donation. Amount is in USD.
type DonateRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// DonateResponse reports the receipt and the project's new funds-raised
// total.
type DonateResponse struct {
	Donation *models.Donation `json:"donation"`
	NewTotal float64          `json:"new_total"`
}

// Donate godoc
// @Summary Donate to a project
// @Description Transfers the given USD amount of the stablecoin to the project owner's wallet and updates the funds-raised counter.
// @Tags donations
// @Accept json
// @Produce json
// @Param slug path string true "Project slug"
// @Param donation body DonateRequest true "Donation amount"
// @Success 200 {object} DonateResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /projects/{slug}/donations [post]
func (h *ApplicationHandler) Donate(c *fiber.Ctx) error {
	slug := c.Params("slug")

	req := new(DonateRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Cannot parse request body.")
	}
	if err := h.Validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Please enter a valid amount")
	}

	project, err := h.Store.GetBySlug(c.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found.")
		}
		h.Logger.WithError(err).WithField("slug", slug).Error("Failed to fetch project for donation")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to load project data. Please try again later.")
	}

	receipt, newTotal, err := h.Donator.Donate(c.Context(), project, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, donation.ErrWalletNotConnected):
			return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Wallet not connected")
		case errors.Is(err, donation.ErrInvalidAmount):
			return utils.RespondWithError(c, fiber.StatusBadRequest, "Please enter a valid amount")
		case errors.Is(err, donation.ErrBadRecipient):
			return utils.RespondWithError(c, fiber.StatusBadRequest,
				"Project wallet address is invalid")
		}
		h.Logger.WithError(err).WithField("slug", slug).Error("Donation failed")
		// The transfer may or may not have landed; the receipt and the
		// reconciliation sweep sort that out. The caller just gets the
		// generic failure, same as a connectivity error.
		return utils.RespondWithError(c, fiber.StatusBadGateway,
			"Failed to process donation. Please try again.")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, DonateResponse{
		Donation: receipt,
		NewTotal: newTotal,
	})
}
