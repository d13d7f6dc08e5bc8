package handler

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/config"
	"amortization-engine/internal/pkg/apperrors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	cfg    config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		logger: l.With("component", "AuthHandler"),
		now:    time.Now,
	}
}

// GenerateBearerToken issues an HS256 bearer token for the given username.
//
// @Summary Generate a JWT bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "username"
// @Success 200 {object} dto.TokenResponse "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode token request", "error", err)
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondError(w, apperrors.NewValidationError("username", "username is required"))
		return
	}
	if h.cfg.JWTSecret == "" {
		h.logger.ErrorContext(r.Context(), "Token requested but no JWT secret is configured")
		respondError(w, fmt.Errorf("%w: token signing is not configured", apperrors.ErrInternalServer))
		return
	}

	expiresAt := h.now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to sign token", "error", err)
		respondError(w, fmt.Errorf("%w: failed to sign token", apperrors.ErrInternalServer))
		return
	}

	h.logger.InfoContext(r.Context(), "Issued bearer token", "username", username)
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     "Bearer " + signed,
		ExpiresAt: dto.FormatDate(expiresAt),
	})
}
