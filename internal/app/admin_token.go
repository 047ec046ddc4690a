package app

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// AdminTokenService issues and verifies the HS256 tokens that guard the
// administrative RPCs (forced reorder, config reload).
type AdminTokenService struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

const (
	AdminActionRefresh = "refresh"
	AdminActionReload  = "reload"
	AdminActionAny     = "*"
)

func NewAdminTokenService(secret, issuer string, ttl time.Duration) *AdminTokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AdminTokenService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Configured reports whether tokens can be issued and verified.
func (s *AdminTokenService) Configured() bool {
	return s != nil && s.secret != "" && s.issuer != ""
}

// Issue signs a token that allows subject to perform action.
func (s *AdminTokenService) Issue(subject, action string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("admin token service is nil")
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if s.secret == "" || s.issuer == "" {
		return "", fmt.Errorf("admin token config is incomplete")
	}
	if err := validAction(action); err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"act": action,
		"jti": fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int63()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks signature, issuer, expiry and that the token grants action.
// It returns the subject on success and an error wrapping ErrInvalidToken otherwise.
func (s *AdminTokenService) Verify(tokenString, action string) (string, error) {
	if s == nil || s.secret == "" {
		return "", fmt.Errorf("%w: admin tokens are not configured", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return "", fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	granted, _ := claims["act"].(string)
	if granted != AdminActionAny && granted != action {
		return "", fmt.Errorf("%w: token does not grant %q", ErrInvalidToken, action)
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

func validAction(action string) error {
	switch action {
	case AdminActionRefresh, AdminActionReload, AdminActionAny:
		return nil
	default:
		return fmt.Errorf("unsupported admin action: %s", action)
	}
}
