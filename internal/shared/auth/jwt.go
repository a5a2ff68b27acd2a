package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of issued tokens unless JWT_TTL overrides it.
const DefaultTTL = 7 * 24 * time.Hour

const issuer = "jobtracker"

// Claims represents the identity contained in a JWT.
type Claims struct {
	Sub     string
	Email   string
	Name    string
	Picture string
	Exp     time.Time
	Iat     time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// SignJWT signs the given claims with HS256 using the configured secret.
func SignJWT(claims Claims) (string, error) {
	secret, err := secretKey()
	if err != nil {
		return "", err
	}
	if claims.Sub == "" {
		return "", errors.New("sub is required")
	}

	now := time.Now().UTC()
	if claims.Iat.IsZero() {
		claims.Iat = now
	}
	if claims.Exp.IsZero() {
		claims.Exp = claims.Iat.Add(tokenTTL())
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(claims.Iat),
			ExpiresAt: jwt.NewNumericDate(claims.Exp),
		},
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	})
	return token.SignedString(secret)
}

// VerifyJWT verifies a token and returns its claims.
func VerifyJWT(raw string) (Claims, error) {
	secret, err := secretKey()
	if err != nil {
		return Claims{}, err
	}

	parsed := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || tok == nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if parsed.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Sub:     parsed.Subject,
		Email:   parsed.Email,
		Name:    parsed.Name,
		Picture: parsed.Picture,
	}
	if parsed.ExpiresAt != nil {
		out.Exp = parsed.ExpiresAt.Time
	}
	if parsed.IssuedAt != nil {
		out.Iat = parsed.IssuedAt.Time
	}
	return out, nil
}

func tokenTTL() time.Duration {
	raw := strings.TrimSpace(os.Getenv("JWT_TTL"))
	if raw == "" {
		return DefaultTTL
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return DefaultTTL
	}
	return d
}

func secretKey() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENV")))
	if env == "production" || env == "prod" {
		if secret == "" {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
	}
	if secret == "" {
		secret = "dev-secret"
	}
	return []byte(secret), nil
}
