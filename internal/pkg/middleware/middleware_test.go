package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usercontext"
)

func newApp(key string, backend identity.Backend) *fiber.App {
	app := fiber.New()
	app.Use(InternalAPIKeyMiddleware(key))
	app.Get("/users/:id", SubjectMiddleware(identity.NewAdapter(backend)), func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		return c.JSON(fiber.Map{"subject": uc.Subject.String(), "caller": uc.Caller, "authenticated": uc.Authenticated})
	})
	return app
}

func status(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestInternalAPIKeyMiddleware(t *testing.T) {
	app := newApp("secret", identity.BackendUsers)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing key", nil, fiber.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "guess"}, fiber.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, fiber.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status(t, app, "/users/7", tt.headers))
		})
	}
}

func TestEmptyKeyRejectsEverything(t *testing.T) {
	app := newApp("", identity.BackendUsers)
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "/users/7", map[string]string{"X-API-Key": ""}))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "/users/7", map[string]string{"Authorization": "Bearer "}))
}

func TestSubjectMiddleware(t *testing.T) {
	auth := map[string]string{"X-API-Key": "secret"}

	users := newApp("secret", identity.BackendUsers)
	assert.Equal(t, fiber.StatusOK, status(t, users, "/users/42", auth))
	assert.Equal(t, fiber.StatusBadRequest, status(t, users, "/users/not-an-id", auth))
	assert.Equal(t, fiber.StatusUnprocessableEntity, status(t, users, "/users/7c9e6679-7425-40de-944b-e07fc1f90ae7", auth))

	profiles := newApp("secret", identity.BackendProfiles)
	assert.Equal(t, fiber.StatusOK, status(t, profiles, "/users/7c9e6679-7425-40de-944b-e07fc1f90ae7", auth))
	assert.Equal(t, fiber.StatusUnprocessableEntity, status(t, profiles, "/users/42", auth))
}
