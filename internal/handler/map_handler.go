package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/middleware"
	"github.com/prmsu-campus/presence-api/internal/service"
	"github.com/prmsu-campus/presence-api/internal/utils"
)

const liveFeedWriteTimeout = 5 * time.Second

// MapHandler wires map data routes including the live occupancy websocket.
type MapHandler struct {
	maps   service.MapService
	events service.PresenceEvents
	logger zerolog.Logger
}

// NewMapHandler constructs the handler.
func NewMapHandler(maps service.MapService, events service.PresenceEvents, logger zerolog.Logger) *MapHandler {
	return &MapHandler{
		maps:   maps,
		events: events,
		logger: logger.With().Str("component", "map_handler").Logger(),
	}
}

// Register attaches map endpoints to the router group.
func (h *MapHandler) Register(router fiber.Router) {
	router.Get("/buildings", h.buildings)
	router.Get("/occupancy", h.occupancy)

	router.Use("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/live", websocket.New(h.handleLive))
}

func (h *MapHandler) buildings(c *fiber.Ctx) error {
	campusID := strings.TrimSpace(c.Query("campus_id"))
	if campusID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "campus_id required")
	}

	buildings, err := h.maps.Buildings(c.Context(), campusID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "buildings retrieved", buildings)
}

func (h *MapHandler) occupancy(c *fiber.Ctx) error {
	campusID := strings.TrimSpace(c.Query("campus_id"))
	if campusID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "campus_id required")
	}

	occupancy, err := h.maps.Occupancy(c.Context(), viewerFromContext(c), campusID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "occupancy retrieved", occupancy)
}

// handleLive streams presence change notifications for one campus. Events
// carry subject and kind only; the client refetches occupancy so every
// disclosure still passes through policy evaluation.
func (h *MapHandler) handleLive(conn *websocket.Conn) {
	defer conn.Close()

	viewerID, _ := conn.Locals("user_id").(string)
	if viewerID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		return
	}

	campusID := strings.TrimSpace(conn.Query("campus_id"))
	if campusID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "campus_id required"))
		return
	}

	events, cancel := h.events.Subscribe(campusID)
	defer cancel()

	h.logger.Info().Str("viewer_id", viewerID).Str("campus_id", campusID).Msg("live feed connected")
	defer h.logger.Info().Str("viewer_id", viewerID).Str("campus_id", campusID).Msg("live feed disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveFeedWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func (h *MapHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
