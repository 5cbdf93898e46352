package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
)

var ErrNoSecret = errors.New("JWT_SECRET_KEY not configured")

// TokenClaims are the claims of an API token.
type TokenClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and validates HS256 API tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for subject. A non-positive ttl uses the issuer default.
func (i *Issuer) Issue(subject string, scope string, ttl time.Duration) (string, *TokenClaims, error) {
	if len(i.secret) == 0 {
		return "", nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = i.ttl
	}

	now := time.Now()
	claims := &TokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Validate parses tokenString and returns its claims when the signature and
// the time claims are valid.
func (i *Issuer) Validate(tokenString string) (*TokenClaims, error) {
	if len(i.secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}

// BearerAuth validates "Authorization: Bearer <token>". A nil issuer lets
// every request through.
func BearerAuth(issuer *Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if issuer == nil {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return router.ResponseUnauthorized(c, "Missing Authorization header")
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return router.ResponseUnauthorized(c, "Invalid Authorization header format. Use: Bearer <token>")
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			return router.ResponseUnauthorized(c, "Missing token")
		}

		claims, err := issuer.Validate(tokenString)
		if err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}

		c.Locals("token_subject", claims.Subject)
		c.Locals("token_id", claims.ID)
		return c.Next()
	}
}
