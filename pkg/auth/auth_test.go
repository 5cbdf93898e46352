package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", AdminAuth("topsecret"), func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/unset", AdminAuth(""), func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := []struct {
		path   string
		secret string
		want   int
	}{
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", "wrong", http.StatusUnauthorized},
		{"/admin", "topsecret", http.StatusOK},
		{"/unset", "anything", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.secret != "" {
			req.Header.Set("X-Admin-Secret", tc.secret)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "%s with %q", tc.path, tc.secret)
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	token, claims, err := issuer.Issue("ops-dashboard", "api", 0)
	require.NoError(t, err)
	assert.Len(t, claims.ID, 36)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	parsed, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-dashboard", parsed.Subject)
	assert.Equal(t, "api", parsed.Scope)
	assert.Equal(t, claims.ID, parsed.ID)

	_, err = NewIssuer("another-secret", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestIssuer_RejectsExpiredAndForeignAlgorithms(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = issuer.Validate(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &TokenClaims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Validate(none)
	assert.Error(t, err)
}

func TestIssuer_NoSecret(t *testing.T) {
	issuer := NewIssuer("", 0)
	_, _, err := issuer.Issue("x", "", 0)
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = issuer.Validate("x.y.z")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerAuth(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _, err := issuer.Issue("client", "", 0)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/guarded", BearerAuth(issuer), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("token_subject").(string))
	})
	app.Get("/open", BearerAuth(nil), func(c *fiber.Ctx) error { return c.SendString("open") })

	cases := map[string]int{
		"":                   http.StatusUnauthorized,
		"Basic abc":          http.StatusUnauthorized,
		"Bearer ":            http.StatusUnauthorized,
		"Bearer not-a-token": http.StatusUnauthorized,
		"Bearer " + token:    http.StatusOK,
		"bearer " + token:    http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, header)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ADMIN_SECRET_KEY", "adm")
	t.Setenv("JWT_SECRET_KEY", "jwt")
	t.Setenv("API_TOKEN_TTL", "90m")

	cfg := LoadConfig()
	assert.Equal(t, "adm", cfg.AdminSecret)
	assert.Equal(t, "jwt", cfg.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
}
