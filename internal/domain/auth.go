package domain

import "time"

// Roles carried in access tokens
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// AuthClaims is the validated identity behind a request
type AuthClaims struct {
	UserID    string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the caller may use operator routes
func (c *AuthClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// AuthService issues and validates access tokens
type AuthService interface {
	GenerateAccessToken(subject, role string) (string, error)
	ValidateToken(token string) (*AuthClaims, error)
}
