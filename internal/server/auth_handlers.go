package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"quill/internal/models"
	"quill/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const refreshTokenTTL = 30 * 24 * time.Hour

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondError(c,
			models.NewValidationError("Username, email, and password are required"))
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		return models.RespondError(c, models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondError(c, models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondError(c, models.NewValidationError(err.Error()))
	}

	if existing, err := s.userRepo.GetByEmail(c.Context(), req.Email); err == nil && existing != nil {
		return models.RespondError(c, models.NewConflictError("Email is already registered"))
	} else if err != nil && models.StatusCode(err) != fiber.StatusNotFound {
		return models.RespondError(c, err)
	}
	if existing, err := s.userRepo.GetByUsername(c.Context(), req.Username); err == nil && existing != nil {
		return models.RespondError(c, models.NewConflictError("Username is already taken"))
	} else if err != nil && models.StatusCode(err) != fiber.StatusNotFound {
		return models.RespondError(c, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(c.Context(), user); err != nil {
		return models.RespondError(c, err)
	}

	token, refresh, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":         token,
		"refresh_token": refresh,
		"user":          user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if models.StatusCode(err) == fiber.StatusNotFound {
			return models.RespondError(c,
				models.NewUnauthenticatedError("Invalid credentials"))
		}
		return models.RespondError(c, err)
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondError(c,
			models.NewUnauthenticatedError("Invalid credentials"))
	}

	token, refresh, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refresh,
		"user":          user,
	})
}

// Refresh handles POST /api/auth/refresh. The presented refresh token is
// rotated: the old record is deleted and a new one issued.
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return models.RespondError(c, models.NewValidationError("Refresh token is required"))
	}

	hash := hashToken(req.RefreshToken)
	record, err := s.userRepo.GetToken(c.Context(), hash)
	if err != nil {
		return models.RespondError(c, err)
	}

	user, err := s.userRepo.GetByID(c.Context(), record.UserID)
	if err != nil {
		return models.RespondError(c, err)
	}

	if err := s.userRepo.DeleteToken(c.Context(), hash); err != nil {
		return models.RespondError(c, err)
	}

	token, refresh, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refresh,
	})
}

// Logout handles POST /api/auth/logout. Deleting an unknown token is not an
// error so a double logout is harmless.
func (s *Server) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return models.RespondError(c, models.NewValidationError("Refresh token is required"))
	}

	if err := s.userRepo.DeleteToken(c.Context(), hashToken(req.RefreshToken)); err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// issueTokens generates a JWT access token and a persisted refresh token
// for the user.
func (s *Server) issueTokens(c *fiber.Ctx, user *models.User) (string, string, error) {
	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return "", "", models.NewInternalError(err)
	}

	refresh := uuid.New().String()
	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.userRepo.CreateToken(c.Context(), record); err != nil {
		return "", "", err
	}
	return token, refresh, nil
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      "quill-api",
		"aud":      "quill-client",
		"exp":      now.Add(time.Hour * 24).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
