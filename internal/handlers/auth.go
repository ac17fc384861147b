package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/models"
	pkgauth "github.com/opsdeck/authguard/pkg/auth"
	pkghttp "github.com/opsdeck/authguard/pkg/http"
	"github.com/opsdeck/authguard/pkg/logger"
)

// DirectoryInterface defines the identity lookups the auth handlers need
type DirectoryInterface interface {
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByID(ctx context.Context, userID int64) (*models.Identity, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	directory DirectoryInterface
	tokens    *auth.TokenManager
	guard     *guard.Guard
	audit     *auditlog.Service
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(directory DirectoryInterface, tokens *auth.TokenManager, g *guard.Guard, audit *auditlog.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		directory: directory,
		tokens:    tokens,
		guard:     g,
		audit:     audit,
		logger:    logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UserResponse is the identity payload embedded in auth responses
type UserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse is the token pair returned on login and refresh
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         UserResponse `json:"user"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.BlockedResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	identity, err := h.directory.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.audit.Record(0, auditlog.ActionLogin, auditlog.StatusFail,
				map[string]any{"reason": "unknown_identity", "email": logger.SanitizedEmail(req.Email)}, r)
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		h.logger.Error("identity lookup failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if !identity.Active {
		h.audit.Record(identity.ID, auditlog.ActionLogin, auditlog.StatusFail,
			map[string]any{"reason": "account_inactive"}, r)
		// Generic error to prevent account enumeration
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	if err := pkgauth.ComparePassword(identity.PasswordHash, req.Password); err != nil {
		h.audit.Record(identity.ID, auditlog.ActionLogin, auditlog.StatusFail,
			map[string]any{"reason": "invalid_password"}, r)
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	resp, err := h.issueTokens(identity)
	if err != nil {
		h.logger.Error("token generation failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// A successful login lifts any standing block for this client
	h.guard.ClearForRequest(r)
	h.audit.Record(identity.ID, auditlog.ActionLogin, auditlog.StatusSuccess, nil, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Accept json
// @Param request body RefreshTokenRequest true "Refresh token request"
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.BlockedResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	claims, err := h.tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != "refresh" {
		h.audit.Record(0, auditlog.ActionRefresh, auditlog.StatusFail,
			map[string]any{"reason": "invalid_token"}, r)
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	identity, err := h.directory.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.audit.Record(claims.UserID, auditlog.ActionRefresh, auditlog.StatusFail,
				map[string]any{"reason": "unknown_identity"}, r)
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		h.logger.Error("identity lookup failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if !identity.Active {
		h.audit.Record(identity.ID, auditlog.ActionRefresh, auditlog.StatusFail,
			map[string]any{"reason": "account_inactive"}, r)
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	resp, err := h.issueTokens(identity)
	if err != nil {
		h.logger.Error("token generation failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.guard.ClearForRequest(r)
	h.audit.Record(identity.ID, auditlog.ActionRefresh, auditlog.StatusSuccess, nil, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Logout handles user logout
// @Summary User logout
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	h.audit.Record(claims.UserID, auditlog.ActionLogout, auditlog.StatusSuccess, nil, r)

	w.WriteHeader(http.StatusNoContent)
}

// AttemptInfo reports the caller's standing against the attempt ceiling for a
// route, defaulting to the login route
// @Summary Current attempt standing
// @Param route query string false "Route to inspect"
// @Produce json
// @Success 200 {object} guard.AttemptInfo
// @Router /auth/attempts [get]
func (h *AuthHandler) AttemptInfo(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		route = "/auth/login"
	}

	ip := pkghttp.ExtractClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	info := h.guard.AttemptInfo(ip, userAgent, route)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

func (h *AuthHandler) issueTokens(identity *models.Identity) (*AuthResponse, error) {
	accessToken, err := h.tokens.GenerateAccessToken(identity.ID, identity.Email, identity.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.tokens.GenerateRefreshToken(identity.ID, identity.Email, identity.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		User: UserResponse{
			ID:    identity.ID,
			Email: identity.Email,
			Name:  identity.Name,
			Role:  identity.Role,
		},
	}, nil
}
