// Package middleware provides authentication, logging, tracing and rate limiting for the HTTP layer.
package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sun/internal/models"
	"sun/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fiber locals written by the auth middleware.
const (
	LocalUserID = "userID"
	LocalCaller = "caller"
)

// Claims is the JWT payload issued at registration and login.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig configures token signing and verification.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenManager returns a TokenManager. A zero TTL means seven days.
func NewTokenManager(cfg TokenConfig) *TokenManager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a token naming user as the subject.
func (m *TokenManager) Issue(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("cannot issue token without a user id")
	}

	now := m.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies token and returns the caller it names.
// Every failure is reported as an Unauthorized AppError.
func (m *TokenManager) Authenticate(token string) (models.CallerIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return models.CallerIdentity{}, models.NewUnauthorizedError("Not authorized, no token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return models.CallerIdentity{}, &models.AppError{
			Code:    models.CodeUnauthorized,
			Message: "Not authorized, token failed",
			Err:     err,
		}
	}
	if claims.Subject == "" {
		return models.CallerIdentity{}, models.NewUnauthorizedError("Not authorized, token failed")
	}

	return models.CallerIdentity{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", models.NewUnauthorizedError("Not authorized, no token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", models.NewUnauthorizedError("Invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func (m *TokenManager) attach(c *fiber.Ctx, token string) error {
	caller, err := m.Authenticate(token)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	c.Locals(LocalUserID, caller.ID)
	c.Locals(LocalCaller, caller)
	c.SetUserContext(observability.WithUserID(c.UserContext(), caller.ID))
	return c.Next()
}

// AuthRequired enforces a valid bearer token and stores the caller in fiber locals.
func (m *TokenManager) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return models.RespondWithError(c, err)
		}
		return m.attach(c, token)
	}
}

// WebSocketAuthRequired accepts the token from the "token" query parameter,
// falling back to the Authorization header, since browsers cannot set headers on upgrades.
func (m *TokenManager) WebSocketAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			var err error
			if token, err = bearerToken(c); err != nil {
				return models.RespondWithError(c, err)
			}
		}
		return m.attach(c, token)
	}
}

// CallerFrom returns the authenticated caller stored by AuthRequired.
func CallerFrom(c *fiber.Ctx) (models.CallerIdentity, bool) {
	caller, ok := c.Locals(LocalCaller).(models.CallerIdentity)
	return caller, ok
}
