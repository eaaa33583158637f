package middleware

import (
	"net/http/httptest"
	"testing"

	"go-fleetreport/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(skipAuth bool) *fiber.App {
	app := fiber.New()
	app.Get("/who", AuthMiddleware(skipAuth), func(c *fiber.Ctx) error {
		claims, _ := Claims(c)
		return c.SendString(claims.AccountID + "/" + claims.UserID)
	})
	app.Post("/admin", AuthMiddleware(skipAuth), SysAdminMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func bearer(t *testing.T, claims utils.UserClaims) string {
	t.Helper()
	utils.SetSecret("middleware-test")
	token, err := utils.GenerateToken(claims)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	app := testApp(false)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Basic abc", fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"no account", bearer(t, utils.UserClaims{UserID: "u1"}), fiber.StatusUnauthorized},
		{"valid", bearer(t, utils.UserClaims{AccountID: "acme", UserID: "u1"}), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSysAdminMiddleware(t *testing.T) {
	app := testApp(false)

	req := httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", bearer(t, utils.UserClaims{AccountID: "acme", UserID: "u1"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", bearer(t, utils.UserClaims{AccountID: "acme", UserID: "root", SysAdmin: true}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestSkipAuthInjectsDevClaims(t *testing.T) {
	app := testApp(true)
	resp, err := app.Test(httptest.NewRequest("GET", "/who", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
