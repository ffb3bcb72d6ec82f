package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/auth"
	"ragchat/internal/logger"
)

// AccountService is the account surface the handlers need.
type AccountService interface {
	TokenVerifier
	Signup(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	Token(username string) (string, error)
	Profile(ctx context.Context, username string) (*auth.Profile, error)
	UpdateProfile(ctx context.Context, username, newUsername, newEmail string) (string, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	RequestReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthHandler struct {
	accounts AccountService
	log      *logger.Logger
}

// NewAuthHandler creates the handler for account routes.
func NewAuthHandler(accounts AccountService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log.With("handler", "AuthHandler")}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type updateProfileRequest struct {
	NewUsername string `json:"new_username"`
	NewEmail    string `json:"new_email"`
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if err := h.accounts.Signup(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		h.fail(c, err, "Signup failed")
		return
	}
	respondOK(c, "Account created successfully", nil)
}

// Login handles POST /auth/login and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "Login failed")
		return
	}
	respondOK(c, "Login successful", gin.H{"token": token})
}

// ForgotPassword handles POST /auth/forgot-password. The reply is the same
// whether or not the email is known.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "email is required")
		return
	}
	msg, err := h.accounts.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err, "Request failed")
		return
	}
	respondOK(c, msg, nil)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "token and new_password are required")
		return
	}
	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(c, err, "Reset failed")
		return
	}
	respondOK(c, "Password reset successful", nil)
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "old_password and new_password are required")
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), currentUser(c), req.OldPassword, req.NewPassword); err != nil {
		h.fail(c, err, "Change failed")
		return
	}
	respondOK(c, "Password changed", nil)
}

// GetProfile handles GET /profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	profile, err := h.accounts.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err, "Failed to fetch profile")
		return
	}
	respondOK(c, "", profile)
}

// UpdateProfile returns a new token when the username changed, since the old
// one names the previous account.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	user := currentUser(c)
	username, err := h.accounts.UpdateProfile(c.Request.Context(), user, req.NewUsername, req.NewEmail)
	if err != nil {
		h.fail(c, err, "Update failed")
		return
	}
	data := gin.H{"username": username}
	if username != user {
		token, err := h.accounts.Token(username)
		if err != nil {
			h.fail(c, err, "Update failed")
			return
		}
		data["token"] = token
	}
	respondOK(c, "Profile updated", data)
}

func (h *AuthHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondFail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, auth.ErrEmailTaken):
		respondFail(c, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		respondFail(c, http.StatusNotFound, err.Error())
	case auth.IsUserError(err):
		respondFail(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error(fallback, "error", err, "request_id", c.GetString(ctxRequestID))
		respondFail(c, http.StatusInternalServerError, fallback)
	}
}
