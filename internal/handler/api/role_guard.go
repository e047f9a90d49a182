package api

import (
	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/observability"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

const userIDContextKey = "user_id"

// RoleGuard provides helper functions for role-based access control in handlers
type RoleGuard struct{}

// NewRoleGuard creates a new role guard instance
func NewRoleGuard() *RoleGuard {
	return &RoleGuard{}
}

// GetCurrentUser extracts the authenticated caller from context
func (rg *RoleGuard) GetCurrentUser(c *gin.Context) (userID, role string, exists bool) {
	userID = c.GetString(userIDContextKey)
	role = c.GetString(observability.UserRoleContextKey)
	if userID == "" || role == "" {
		return "", "", false
	}
	return userID, role, true
}

// RequireRole checks if user has required role
func (rg *RoleGuard) RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, exists := rg.GetCurrentUser(c)
		if !exists {
			logger.Warn("Access denied - user not authenticated",
				logger.String("required_role", requiredRole),
				logger.String("ip", c.ClientIP()),
			)
			xresponse.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		if role != requiredRole {
			logger.Warn("Access denied - insufficient role",
				logger.String("user_role", role),
				logger.String("required_role", requiredRole),
				logger.String("ip", c.ClientIP()),
			)
			xresponse.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin checks if user is admin
func (rg *RoleGuard) RequireAdmin() gin.HandlerFunc {
	return rg.RequireRole(domain.RoleAdmin)
}

// LogAccess logs access with user information
func (rg *RoleGuard) LogAccess(c *gin.Context, action string, resource string) {
	userID, role, exists := rg.GetCurrentUser(c)
	if !exists {
		return
	}
	logger.Info("User action",
		logger.String("trace_id", observability.GetTraceID(c)),
		logger.String("user_id", userID),
		logger.String("role", role),
		logger.String("action", action),
		logger.String("resource", resource),
		logger.String("ip", c.ClientIP()),
	)
}
