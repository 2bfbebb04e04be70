package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/kthomas256/veriauth/internal/auth"
	"github.com/kthomas256/veriauth/internal/handlers"
	"github.com/kthomas256/veriauth/internal/middleware"
	"github.com/kthomas256/veriauth/internal/services"
)

// Deps collects the services the router wires into handlers.
type Deps struct {
	JWT          *iauth.JWTService
	Verification *services.VerificationService
	Accounts     *services.AccountService
	Resets       *services.PasswordResetService
	Metrics      bool
}

// NewRouter builds the Gin engine, wires middleware, and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Verification == nil || deps.Accounts == nil || deps.Resets == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	authHandler := handlers.NewAuthHandler(deps.Verification, deps.Accounts)
	resetHandler := handlers.NewPasswordResetHandler(deps.Resets, deps.JWT)
	profileHandler := handlers.NewProfileHandler(deps.Accounts)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/verify-email", authHandler.VerifyEmailByLink)
		auth.POST("/verify-email-otp", authHandler.VerifyEmailByOTP)
		auth.POST("/resend-otp", authHandler.ResendOTP)
		auth.POST("/request-otp", resetHandler.RequestOTP)
		auth.POST("/verify-otp", resetHandler.VerifyOTP)
		// Bearer credential is the reset token; validated in the handler.
		auth.POST("/reset-password", resetHandler.ResetPassword)
	}

	// Session-protected routes
	requireAuth := middleware.Auth(deps.JWT)
	protected := r.Group("/api/auth")
	protected.Use(requireAuth)
	{
		protected.GET("/profile/:username", profileHandler.Get)
		protected.DELETE("/delete", profileHandler.Delete)
	}

	if deps.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
