package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-go/internal/service"
)

func graderApp(bind func(c *fiber.Ctx)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		bind(c)
		return c.Next()
	})
	app.Use(RequireGrader())
	app.Get("/api/v2/grading/submissions/1/runs", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireGraderRoles(t *testing.T) {
	cases := map[string]struct {
		actor  *service.Actor
		status int
	}{
		"teacher":  {actor: &service.Actor{ID: 3, Role: service.RoleTeacher}, status: fiber.StatusOK},
		"admin":    {actor: &service.Actor{ID: 1, Role: service.RoleAdmin}, status: fiber.StatusOK},
		"student":  {actor: &service.Actor{ID: 8, Role: "student"}, status: fiber.StatusForbidden},
		"no role":  {actor: &service.Actor{ID: 8}, status: fiber.StatusForbidden},
		"zero id":  {actor: &service.Actor{Role: service.RoleTeacher}, status: fiber.StatusUnauthorized},
		"no actor": {status: fiber.StatusUnauthorized},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			app := graderApp(func(c *fiber.Ctx) {
				if tc.actor != nil {
					BindActor(c, *tc.actor)
				}
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/grading/submissions/1/runs", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
