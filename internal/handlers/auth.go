package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"redas-backend/internal/models"
	"redas-backend/internal/repository"
	"redas-backend/internal/workflow"
)

// bcryptCost balances hashing time against brute-force resistance.
const bcryptCost = 12

// tokenTTL is how long an issued JWT stays valid.
const tokenTTL = 7 * 24 * time.Hour

// AuthHandler manages user registration, login, and profile retrieval.
type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret []byte
	log       *zap.Logger
	cost      int
}

// NewAuthHandler creates an AuthHandler with the given user store and JWT signing key.
func NewAuthHandler(users repository.UserRepository, jwtSecret string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		log:       log,
		cost:      bcryptCost,
	}
}

// Register creates a new account and returns a JWT for it.
// Every new account is a plain submitter; elevated roles are granted
// through user management.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.Create(ctx, &models.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         workflow.RoleUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			JSONError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		h.log.Error("create user", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		h.log.Error("generate token", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Account created but login failed")
		return
	}

	h.log.Info("user registered", zap.Int64("user_id", user.ID))
	JSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: *user})
}

// Login authenticates a user with email + password and returns a JWT token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.log.Error("lookup user", zap.Error(err))
		}
		// Same message either way to prevent email enumeration.
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		h.log.Error("generate token", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	JSON(w, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

// GetMe returns the profile of the currently authenticated user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			JSONError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error("get current user", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": user})
}

// generateToken creates a signed JWT with user ID and role as claims.
func (h *AuthHandler) generateToken(u *models.User) (string, error) {
	return SignToken(h.jwtSecret, u.ID, u.Role, time.Now().Add(tokenTTL))
}

// SignToken issues an HS256 token in the shape middleware.Auth accepts.
func SignToken(secret []byte, userID int64, role workflow.Role, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"role":   string(role),
		"exp":    expires.Unix(),
		"iat":    time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
