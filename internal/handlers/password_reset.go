package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/kthomas256/veriauth/internal/auth"
	"github.com/kthomas256/veriauth/internal/middleware"
	"github.com/kthomas256/veriauth/internal/services"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/response"
)

// PasswordResetHandler exposes the three-step reset flow: request an OTP,
// exchange it for a reset token, and commit a new password.
type PasswordResetHandler struct {
	resets *services.PasswordResetService
	jwt    *iauth.JWTService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(resets *services.PasswordResetService, jwt *iauth.JWTService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets, jwt: jwt}
}

type requestOtpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/request-otp
func (h *PasswordResetHandler) RequestOTP(c *gin.Context) {
	var req requestOtpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.RequestOTP(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "OTP sent to email"})
}

// POST /api/auth/verify-otp
func (h *PasswordResetHandler) VerifyOTP(c *gin.Context) {
	var req verifyOtpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.resets.VerifyOTP(c.Request.Context(), req.Email, req.Otp)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message":     "OTP verified successfully",
		"reset_token": token,
	})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=256"`
}

// POST /api/auth/reset-password
// The bearer credential here is the reset token from VerifyOTP, not a session
// token, so it is validated inline rather than by the auth middleware.
func (h *PasswordResetHandler) ResetPassword(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateResetToken(token)
	if err != nil {
		if errors.Is(err, iauth.ErrTokenExpired) {
			response.Error(c, apperrors.ErrTokenExpired)
			return
		}
		response.Error(c, apperrors.ErrTokenInvalid)
		return
	}

	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Commit(c.Request.Context(), claims.Email, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password reset successful"})
}
