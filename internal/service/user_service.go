// Package service implements the business rules behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"strings"

	"sun/internal/models"
	"sun/internal/observability"
	"sun/internal/repository"
	"sun/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService owns registration, login and profile lookup.
type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

// UserServiceOption customizes a UserService.
type UserServiceOption func(*UserService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) UserServiceOption {
	return func(s *UserService) { s.bcryptCost = cost }
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     models.Role
	Location models.Location
	OrgType  string
	Skills   string
}

func NewUserService(userRepo repository.UserRepository, opts ...UserServiceOption) *UserService {
	s := &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates in, hashes the password and stores a new user with zero points.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	span, ctx := observability.NewSpan(ctx, "UserService.Register")
	defer span.End()

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Please provide name, email and password")
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateRole(in.Role); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateEmailError()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleDonor
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: string(hashed),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     role,
		Location: in.Location,
		OrgType:  in.OrgType,
		Skills:   in.Skills,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.SetError(err)
		return nil, err
	}

	return user, nil
}

// Login returns the user whose email and password match.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	span, ctx := observability.NewSpan(ctx, "UserService.Login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("Please provide email and password")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if user == nil {
		return nil, models.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			span.SetError(err)
		}
		return nil, models.NewInvalidCredentialsError()
	}
	return user, nil
}

// Profile returns the stored user, or NotFound when the account no longer exists.
func (s *UserService) Profile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: "User not found"}
	}
	return user, nil
}
