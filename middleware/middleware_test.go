package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("secret", quiet))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":   {"", fiber.StatusUnauthorized},
		"wrong":     {"Bearer nope", fiber.StatusUnauthorized},
		"bearer":    {"Bearer secret", fiber.StatusOK},
		"raw token": {"secret", fiber.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, status(t, app, req))
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	var id string
	var roles []string
	app.Get("/", func(c *fiber.Ctx) error {
		id = UserID(c)
		roles = UserRoles(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u-1")
	req.Header.Set("X-User-Roles", "admin, ,moderator")
	require.Equal(t, fiber.StatusOK, status(t, app, req))

	assert.Equal(t, "u-1", id)
	assert.Equal(t, []string{"admin", "moderator"}, roles)
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/", RequireRole("moderator", "admin"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := map[string]struct {
		roles string
		want  int
	}{
		"none":      {"", fiber.StatusForbidden},
		"other":     {"player", fiber.StatusForbidden},
		"moderator": {"moderator", fiber.StatusOK},
		"any match": {"player,admin", fiber.StatusOK},
		"exact":     {"Admin", fiber.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-User-Roles", tc.roles)
			assert.Equal(t, tc.want, status(t, app, req))
		})
	}
}

var errMissing = errors.New("missing")

type sweeperFunc func(ctx context.Context, id string) (int, error)

func (f sweeperFunc) Sweep(ctx context.Context, id string) (int, error) { return f(ctx, id) }

func TestSweepCompetitionRunsBeforeHandler(t *testing.T) {
	var swept []string
	sweeper := sweeperFunc(func(_ context.Context, id string) (int, error) {
		swept = append(swept, id)
		if id == "gone" {
			return 0, errMissing
		}
		if id == "broken" {
			return 0, errors.New("db down")
		}
		return 1, nil
	})

	app := fiber.New()
	app.Get("/competitions/:id", SweepCompetition(sweeper, errMissing, quiet), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for _, id := range []string{"c-1", "gone", "broken"} {
		req := httptest.NewRequest(http.MethodGet, "/competitions/"+id, nil)
		assert.Equal(t, fiber.StatusOK, status(t, app, req), "a sweep never blocks the request")
	}
	assert.Equal(t, []string{"c-1", "gone", "broken"}, swept)
}

func TestRequestTimeout(t *testing.T) {
	app := fiber.New()
	app.Use(RequestTimeout(time.Minute))
	var deadline time.Time
	var ok bool
	app.Get("/", func(c *fiber.Ctx) error {
		deadline, ok = c.UserContext().Deadline()
		return c.SendStatus(fiber.StatusOK)
	})

	require.Equal(t, fiber.StatusOK, status(t, app, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 10*time.Second)
}
