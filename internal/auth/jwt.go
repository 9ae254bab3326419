package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the role claim.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	RoleFighter    = "fighter"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims is the token payload. Admin tokens name a staff account in the subject;
// fighter tokens name the fighter id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry an administrative role.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}

func knownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSuperAdmin, RoleFighter:
		return true
	}
	return false
}

// Token is a signed access token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Tokens signs and verifies HS256 access tokens for one issuer.
type Tokens struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a signer. A non-positive ttl defaults to 12 hours.
func NewTokens(signingKey, issuer string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{key: []byte(signingKey), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for subject acting as role.
func (t *Tokens) Issue(subject, role string) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("issue token: empty subject")
	}
	if !knownRole(role) {
		return Token{}, fmt.Errorf("issue token: %w %q", ErrUnknownRole, role)
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse verifies signature, expiry, issuer and role, and returns the claims.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !knownRole(claims.Role) {
		return Claims{}, fmt.Errorf("%w: %w %q", ErrInvalidToken, ErrUnknownRole, claims.Role)
	}
	return claims, nil
}
