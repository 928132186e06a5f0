package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/auth"
	"github.com/codeclash/codeclash-server/internal/store"
)

// AuthHandlers provides HTTP handlers for account and token endpoints.
type AuthHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, log: logger}
}

// CredentialsRequest is the register/login request body.
type CredentialsRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=3,max=32"`
	Password    string `json:"password" binding:"required,min=6"`
}

// GuestRequest is the guest token request body.
type GuestRequest struct {
	DisplayName string `json:"display_name" binding:"omitempty,max=32"`
}

// TokenResponse carries an issued token plus the identity it names.
type TokenResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.auth.Register(c.Request.Context(), req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "display name already taken"})
		case errors.Is(err, auth.ErrInvalidName), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, tokenResponse(token, user))
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse(token, user))
}

// Guest handles POST /api/auth/guest.
func (h *AuthHandlers) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.auth.CreateGuest(c.Request.Context(), req.DisplayName)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("guest creation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, tokenResponse(token, user))
}

func tokenResponse(token string, user *store.User) TokenResponse {
	return TokenResponse{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Rating:      user.Rating,
	}
}
