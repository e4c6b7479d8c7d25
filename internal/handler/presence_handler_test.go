package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prmsu-campus/presence-api/internal/service"
	"github.com/prmsu-campus/presence-api/internal/utils"
)

func errorMappingApp(err error) *fiber.App {
	h := &PresenceHandler{logger: zerolog.Nop()}
	app := fiber.New()
	app.Get("/fail", func(c *fiber.Ctx) error {
		return h.handleError(c, err)
	})
	return app
}

func TestPresenceHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"subject not found", service.ErrSubjectNotFound, fiber.StatusNotFound, "subject not found"},
		{"not consented", service.ErrNotConsented, fiber.StatusForbidden, "location sharing is not enabled"},
		{"sharing disabled", service.ErrSharingSuspended, fiber.StatusConflict, "sharing is disabled until you opt in"},
		{"campus kill switch", service.ErrSystemPaused, fiber.StatusServiceUnavailable, "location sharing is temporarily disabled"},
		{"unknown building", service.ErrUnknownBuilding, fiber.StatusBadRequest, "unknown building"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := errorMappingApp(tc.err)
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tc.status, resp.StatusCode)

			var body utils.APIResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.False(t, body.Success)
			require.Equal(t, tc.message, body.Message)
		})
	}
}
