package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kthomas256/veriauth/internal/middleware"
	"github.com/kthomas256/veriauth/internal/services"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/response"
)

// ProfileHandler serves authenticated account reads and self-deletion.
type ProfileHandler struct {
	accounts *services.AccountService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// GET /api/auth/profile/:username
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, userPayload(user))
}

// DELETE /api/auth/delete
// Deletes the account named by the session token's username claim.
func (h *ProfileHandler) Delete(c *gin.Context) {
	username := c.GetString(middleware.CtxUsernameKey)
	if username == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.accounts.Delete(c.Request.Context(), username); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Account deleted successfully"})
}
