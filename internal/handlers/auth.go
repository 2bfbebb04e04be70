package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kthomas256/veriauth/internal/models"
	"github.com/kthomas256/veriauth/internal/services"
	"github.com/kthomas256/veriauth/pkg/response"
)

// AuthHandler manages registration, login, and email verification flows.
type AuthHandler struct {
	verification *services.VerificationService
	accounts     *services.AccountService
}

// NewAuthHandler constructs an AuthHandler from its services.
func NewAuthHandler(verification *services.VerificationService, accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{verification: verification, accounts: accounts}
}

type registerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=256"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.verification.Register(c.Request.Context(), services.RegisterInput{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Account created. Check your email for the verification link or code.",
		"user":    userPayload(user),
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  userPayload(user),
	})
}

// GET /api/auth/verify-email?token=...&id=...
func (h *AuthHandler) VerifyEmailByLink(c *gin.Context) {
	token := c.Query("token")
	userID := c.Query("id")

	if err := h.verification.VerifyLink(c.Request.Context(), userID, token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type verifyOtpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Otp   string `json:"otp" validate:"required,len=6,numeric"`
}

// POST /api/auth/verify-email-otp
func (h *AuthHandler) VerifyEmailByOTP(c *gin.Context) {
	var req verifyOtpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.verification.VerifyOTP(c.Request.Context(), req.Email, req.Otp); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req resendRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.verification.Resend(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Verification code sent"})
}

// userPayload strips credential material from an account before rendering.
func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"is_verified":  user.IsVerified,
	}
}
