package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/refledger/internal/domain"
	authpkg "github.com/alfanzaky/refledger/pkg/auth"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
	"github.com/alfanzaky/refledger/pkg/observability"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Submission *SubmissionHandler
	Account    *AccountHandler
	Admin      *AdminHandler
}

// SetupRoutes configures all API routes. requestTimeout bounds how long a
// request may wait on per-user locks; zero disables it.
func SetupRoutes(router *gin.Engine, handlers Handlers, authService domain.AuthService, requestTimeout time.Duration) {
	router.Use(recoveryMiddleware(), corsMiddleware())

	v1 := router.Group("/api/v1")
	v1.Use(timeoutMiddleware(requestTimeout), authMiddleware(authService))
	{
		configureUserRoutes(v1, handlers.Submission, handlers.Account)
		configureAdminRoutes(v1, handlers.Admin)
	}

	logger.Info("API routes configured successfully")
}

func configureUserRoutes(group *gin.RouterGroup, submissionHandler *SubmissionHandler, accountHandler *AccountHandler) {
	group.POST("/submissions", submissionHandler.Submit)
	group.GET("/balance", accountHandler.GetBalance)
	group.GET("/referrals/earnings", accountHandler.GetReferralEarnings)
	group.GET("/ledger", accountHandler.GetLedger)
	group.POST("/withdrawals", accountHandler.Withdraw)
}

func configureAdminRoutes(group *gin.RouterGroup, adminHandler *AdminHandler) {
	admin := group.Group("/admin")
	admin.Use(NewRoleGuard().RequireAdmin())
	{
		admin.GET("/premium-config", adminHandler.GetPremiumConfig)
		admin.PUT("/premium-config", adminHandler.SetPremiumConfig)
		admin.POST("/ledger/reconcile", adminHandler.Reconcile)

		users := admin.Group("/users")
		{
			users.POST("", adminHandler.RegisterUser)
			users.POST("/:id/unfreeze", adminHandler.Unfreeze)
			users.POST("/:id/cancel-freeze", adminHandler.CancelFreeze)
			users.POST("/:id/premium", adminHandler.AssignPremium)
			users.PUT("/:id/tier", adminHandler.SetTier)
			users.POST("/:id/deposits", adminHandler.Deposit)
		}
	}
}

// authMiddleware validates JWT token and sets user context
func authMiddleware(authService domain.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			xresponse.InternalServerError(c, "Auth service not available")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			metrics.RecordAuthAttempt("jwt", "missing_token")
			xresponse.Unauthorized(c, "Authorization header with Bearer token required")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := authService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, authpkg.ErrExpiredToken):
				metrics.RecordAuthAttempt("jwt", "expired")
				xresponse.Unauthorized(c, "Token expired")
			case errors.Is(err, authpkg.ErrInvalidToken):
				metrics.RecordAuthAttempt("jwt", "invalid")
				xresponse.Unauthorized(c, "Invalid token")
			default:
				xresponse.InternalServerError(c, "Failed to validate token")
			}
			c.Abort()
			return
		}

		metrics.RecordAuthAttempt("jwt", "success")
		c.Set(userIDContextKey, claims.UserID)
		c.Set(observability.UserRoleContextKey, claims.Role)

		logger.Debug("User authenticated via middleware",
			logger.String("user_id", claims.UserID),
			logger.String("role", claims.Role),
			logger.String("token_expires_at", claims.ExpiresAt.Format(time.RFC3339)),
		)

		c.Next()
	}
}

// timeoutMiddleware bounds the request context
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+observability.TraceIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			logger.String("error", fmt.Sprintf("%v", recovered)),
			logger.String("path", c.Request.URL.Path),
			logger.String("method", c.Request.Method),
		)

		xresponse.InternalServerError(c, "Internal server error")
		c.Abort()
	})
}
