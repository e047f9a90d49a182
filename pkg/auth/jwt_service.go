package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/alfanzaky/refledger/config"
	"github.com/alfanzaky/refledger/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrInvalidRole  = errors.New("invalid role")
)

type customClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthService implements domain.AuthService with HS256 access tokens
type JWTAuthService struct {
	cfg   config.AuthConfig
	clock clockwork.Clock
}

var _ domain.AuthService = (*JWTAuthService)(nil)

// NewJWTAuthService creates a new auth service instance
func NewJWTAuthService(cfg config.AuthConfig, clock clockwork.Clock) *JWTAuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTAuthService{cfg: cfg, clock: clock}
}

func (s *JWTAuthService) accessTTL() time.Duration {
	if s.cfg.AccessTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return s.cfg.AccessTokenTTL
}

func normalizeRole(role string) (string, error) {
	switch r := strings.ToUpper(strings.TrimSpace(role)); r {
	case "":
		return domain.RoleUser, nil
	case domain.RoleUser, domain.RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
}

// GenerateAccessToken creates a signed access token for subject
func (s *JWTAuthService) GenerateAccessToken(subject, role string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("token subject is required")
	}
	role, err := normalizeRole(role)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := &customClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL())),
			ID:        fmt.Sprintf("%s-%d", subject, now.UnixNano()),
		},
	}
	if audience := strings.TrimSpace(s.cfg.Audience); audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates JWT token and returns AuthClaims
func (s *JWTAuthService) ValidateToken(token string) (*domain.AuthClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &customClaims{}
	options := []jwt.ParserOption{
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if iss := strings.TrimSpace(s.cfg.Issuer); iss != "" {
		options = append(options, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(s.cfg.Audience); aud != "" {
		options = append(options, jwt.WithAudience(aud))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.AccessSecret), nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role, err := normalizeRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &domain.AuthClaims{
		UserID:    claims.Subject,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
