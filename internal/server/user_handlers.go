package server

import (
	"sun/internal/models"
	"sun/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Phone    string          `json:"phone"`
	Role     models.Role     `json:"role"`
	Location models.Location `json:"location"`
	OrgType  string          `json:"orgType"`
	Skills   string          `json:"skills"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/users/register
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param body body registerRequest true "registration data"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.userService.Register(ctx, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     req.Role,
		Location: req.Location,
		OrgType:  req.OrgType,
		Skills:   req.Skills,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return s.respondWithToken(c, fiber.StatusCreated, user)
}

// Login handles POST /api/users/login
// @Summary Log in
// @Tags users
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return s.respondWithToken(c, fiber.StatusOK, user)
}

func (s *Server) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(authResponse{Token: token, User: newUserView(user)})
}

// GetProfile handles GET /api/users/profile
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userView
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.userService.Profile(ctx, caller.ID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(newUserView(user))
}
