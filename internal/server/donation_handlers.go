package server

import (
	"sun/internal/models"
	"sun/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createDonationRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Quantity    int              `json:"quantity"`
	Condition   models.Condition `json:"condition"`
	Location    models.Location  `json:"location"`
}

type distributeRequest struct {
	PeopleHelped int `json:"peopleHelped"`
}

// ListDonations handles GET /api/donations
// @Summary List all donations with their donor
// @Tags donations
// @Produce json
// @Success 200 {array} donationWithDonorView
// @Router /donations [get]
func (s *Server) ListDonations(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	donations, err := s.donationService.List(ctx)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(donationWithDonorViews(donations))
}

// ListAvailableDonations handles GET /api/donations/available
// @Summary List donations that can still be claimed
// @Tags donations
// @Produce json
// @Success 200 {array} donationWithDonorView
// @Router /donations/available [get]
func (s *Server) ListAvailableDonations(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	donations, err := s.donationService.ListAvailable(ctx)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(donationWithDonorViews(donations))
}

// GetDonation handles GET /api/donations/:id
// @Summary Get one donation
// @Tags donations
// @Produce json
// @Param id path string true "donation id"
// @Success 200 {object} donationWithDonorView
// @Failure 404 {object} models.ErrorResponse
// @Router /donations/{id} [get]
func (s *Server) GetDonation(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	donation, err := s.donationService.Get(ctx, id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(newDonationWithDonorView(*donation))
}

// CreateDonation handles POST /api/donations
// @Summary List a new donation
// @Tags donations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body createDonationRequest true "donation"
// @Success 201 {object} donationView
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /donations [post]
func (s *Server) CreateDonation(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var req createDonationRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	donation, err := s.donationService.Create(ctx, caller, service.CreateDonationInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Condition:   req.Condition,
		Location:    req.Location,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newDonationView(donation))
}

// ClaimDonation handles PUT /api/donations/:id/claim
// @Summary Claim an available donation
// @Tags donations
// @Produce json
// @Security BearerAuth
// @Param id path string true "donation id"
// @Success 200 {object} donationView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /donations/{id}/claim [put]
func (s *Server) ClaimDonation(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	donation, err := s.donationService.Claim(ctx, caller, id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(newDonationView(donation))
}

// DistributeDonation handles PUT /api/donations/:id/distribute
// @Summary Mark a claimed donation as distributed
// @Tags donations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "donation id"
// @Param body body distributeRequest false "distribution details"
// @Success 200 {object} donationView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /donations/{id}/distribute [put]
func (s *Server) DistributeDonation(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var req distributeRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	donation, err := s.donationService.Distribute(ctx, caller, id, req.PeopleHelped)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(newDonationView(donation))
}
