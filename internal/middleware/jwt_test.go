package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func protectedApp(capture *map[string]interface{}) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		if capture != nil {
			*capture = map[string]interface{}{
				"user_id":          c.Locals("user_id"),
				"user_role":        c.Locals("user_role"),
				"user_departments": c.Locals("user_departments"),
			}
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestJWTProtectedBindsIdentityClaims(t *testing.T) {
	var locals map[string]interface{}
	app := protectedApp(&locals)

	token := signToken(t, jwt.MapClaims{
		"sub":         "prof-maria-santos",
		"role":        "Professor",
		"departments": []string{"Computer Science", "Mathematics"},
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "prof-maria-santos", locals["user_id"])
	require.Equal(t, "professor", locals["user_role"])
	require.Equal(t, []string{"Computer Science", "Mathematics"}, locals["user_departments"])
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := protectedApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsBadSignature(t *testing.T) {
	app := protectedApp(nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "prof-x"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsMalformedBearer(t *testing.T) {
	app := protectedApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
