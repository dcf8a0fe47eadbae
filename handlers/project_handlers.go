package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dappshunt/api-gateway/internal/store"
	"dappshunt/api-gateway/middleware"
	"dappshunt/api-gateway/models"
	"dappshunt/api-gateway/utils"
)

// SubmitProjectRequest defines the expected request body for submitting a
// project. Repo, Demo, and Social are optional; everything else is required
// and the funding goal must be positive.
type SubmitProjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Tagline     string  `json:"tagline" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Repo        *string `json:"repo,omitempty" validate:"omitempty,url"`
	Demo        *string `json:"demo,omitempty" validate:"omitempty,url"`
	Social      *string `json:"social,omitempty" validate:"omitempty,url"`
	FundingGoal float64 `json:"funding_goal" validate:"required,gt=0"`
	UseOfFunds  string  `json:"use_of_funds" validate:"required"`
}

// ValidateStepRequest carries one step of the multi-step submission form.
// Steps mirror the form: 1 basics, 2 description and links, 3 funding.
type ValidateStepRequest struct {
	Step int `json:"step" validate:"required,min=1,max=3"`
	SubmitProjectRequest
}

// stepFields maps each form step to the struct fields it validates.
var stepFields = map[int][]string{
	1: {"Name", "Tagline"},
	2: {"Description", "Repo", "Demo", "Social"},
	3: {"FundingGoal", "UseOfFunds"},
}

// ProjectResponse is the public shape of a project, including the computed
// funding progress percentage.
type ProjectResponse struct {
	models.Project
	Progress float64 `json:"progress"`
}

func toProjectResponse(p models.Project) ProjectResponse {
	return ProjectResponse{Project: p, Progress: p.Progress()}
}

func toProjectResponses(projects []models.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	return out
}

// ListProjects godoc
// @Summary List approved projects
// @Description Retrieves the publicly browsable projects (status Approved).
// @Tags projects
// @Produce json
// @Success 200 {array} ProjectResponse
// @Failure 500 {object} map[string]string
// @Router /projects [get]
func (h *ApplicationHandler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.Store.ListApproved(c.Context())
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list approved projects")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to load projects. Please try again later.")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, toProjectResponses(projects))
}

// GetProject handles retrieving a specific project by its slug.
func (h *ApplicationHandler) GetProject(c *fiber.Ctx) error {
	slug := c.Params("slug")

	project, err := h.Store.GetBySlug(c.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found.")
		}
		h.Logger.WithError(err).WithField("slug", slug).Error("Failed to fetch project")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to load project data. Please try again later.")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, toProjectResponse(*project))
}

// MyProjects returns every project owned by the authenticated wallet,
// whatever its status. Backs the owner dashboard.
func (h *ApplicationHandler) MyProjects(c *fiber.Ctx) error {
	wallet := middleware.CallerWallet(c)

	projects, err := h.Store.ListByWallet(c.Context(), wallet)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list owner projects")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to load your projects. Please try again later.")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, toProjectResponses(projects))
}

// ValidateStep godoc
// @Summary Validate one step of the submission form
// @Description Validates the fields belonging to the given form step without touching the store.
// @Tags projects
// @Accept json
// @Produce json
// @Param step body ValidateStepRequest true "Step payload"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /projects/validate [post]
func (h *ApplicationHandler) ValidateStep(c *fiber.Ctx) error {
	req := new(ValidateStepRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Cannot parse request body.")
	}

	fields, ok := stepFields[req.Step]
	if !ok {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Unknown form step.")
	}

	if err := h.Validate.StructPartial(req.SubmitProjectRequest, fields...); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"step": req.Step})
}

// SubmitProject godoc
// @Summary Submit a new project
// @Description Creates a project owned by the authenticated wallet. New projects start Pending with zero funds raised.
// @Tags projects
// @Accept json
// @Produce json
// @Param project body SubmitProjectRequest true "Project to submit"
// @Success 201 {object} ProjectResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /projects [post]
func (h *ApplicationHandler) SubmitProject(c *fiber.Ctx) error {
	req := new(SubmitProjectRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Cannot parse request body.")
	}

	req.Name = utils.SanitizeInput(req.Name)
	req.Tagline = utils.SanitizeInput(req.Tagline)
	req.Description = utils.SanitizeInput(req.Description)
	req.UseOfFunds = utils.SanitizeInput(req.UseOfFunds)

	if err := h.Validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}

	wallet := middleware.CallerWallet(c)
	project := &models.Project{
		Name:        req.Name,
		Tagline:     req.Tagline,
		Description: req.Description,
		Repo:        req.Repo,
		Demo:        req.Demo,
		Social:      req.Social,
		FundingGoal: req.FundingGoal,
		UseOfFunds:  req.UseOfFunds,
		Wallet:      wallet,
		Slug:        utils.Slugify(req.Name),
	}

	created, err := h.Store.Create(c.Context(), project)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create project")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to submit project. Please try again.")
	}
	return utils.RespondWithJSON(c, fiber.StatusCreated, toProjectResponse(*created))
}

// EditProject handles an owner edit. The stored owner wallet must match the
// authenticated caller; any edit sends the project back to Pending.
func (h *ApplicationHandler) EditProject(c *fiber.Ctx) error {
	slug := c.Params("slug")
	wallet := middleware.CallerWallet(c)

	project, err := h.Store.GetBySlug(c.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found.")
		}
		h.Logger.WithError(err).WithField("slug", slug).Error("Failed to fetch project for edit")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to load project. Please try again.")
	}

	if !project.OwnedBy(wallet) {
		h.Logger.WithFields(map[string]interface{}{
			"slug":   slug,
			"caller": wallet,
		}).Warn("Edit rejected: caller does not own project")
		return utils.RespondWithError(c, fiber.StatusForbidden,
			"You do not have permission to edit this project.")
	}

	req := new(SubmitProjectRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Cannot parse request body.")
	}

	req.Name = utils.SanitizeInput(req.Name)
	req.Tagline = utils.SanitizeInput(req.Tagline)
	req.Description = utils.SanitizeInput(req.Description)
	req.UseOfFunds = utils.SanitizeInput(req.UseOfFunds)

	if err := h.Validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}

	fields := map[string]interface{}{
		"name":         req.Name,
		"tagline":      req.Tagline,
		"description":  req.Description,
		"funding_goal": req.FundingGoal,
		"use_of_funds": req.UseOfFunds,
	}
	if req.Repo != nil {
		fields["repo"] = *req.Repo
	}
	if req.Demo != nil {
		fields["demo"] = *req.Demo
	}
	if req.Social != nil {
		fields["social"] = *req.Social
	}

	updated, err := h.Store.Update(c.Context(), project.ID.String(), fields)
	if err != nil {
		h.Logger.WithError(err).WithField("slug", slug).Error("Failed to update project")
		return utils.RespondWithError(c, fiber.StatusInternalServerError,
			"Failed to update project. Please try again.")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, toProjectResponse(*updated))
}
