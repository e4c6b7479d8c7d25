package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/service"
	"github.com/prmsu-campus/presence-api/internal/utils"
)

// DirectoryHandler wires the professor directory routes.
type DirectoryHandler struct {
	service service.DirectoryService
	logger  zerolog.Logger
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service service.DirectoryService, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.With().Str("component", "directory_handler").Logger(),
	}
}

// Register attaches directory endpoints to the router group.
func (h *DirectoryHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Put("/favorites/:subject_id", h.addFavorite)
	router.Delete("/favorites/:subject_id", h.removeFavorite)
}

func (h *DirectoryHandler) list(c *fiber.Ctx) error {
	campusID := strings.TrimSpace(c.Query("campus_id"))
	if campusID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "campus_id required")
	}

	directory, err := h.service.List(
		c.Context(),
		viewerFromContext(c),
		campusID,
		strings.TrimSpace(c.Query("search")),
		strings.TrimSpace(c.Query("filter")),
	)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "directory retrieved", directory)
}

func (h *DirectoryHandler) addFavorite(c *fiber.Ctx) error {
	subjectID := strings.TrimSpace(c.Params("subject_id"))
	if subjectID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "subject id required")
	}

	if err := h.service.AddFavorite(c.Context(), userIDFromContext(c), subjectID); err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "favorite added", fiber.Map{"subject_id": subjectID})
}

func (h *DirectoryHandler) removeFavorite(c *fiber.Ctx) error {
	subjectID := strings.TrimSpace(c.Params("subject_id"))
	if subjectID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "subject id required")
	}

	if err := h.service.RemoveFavorite(c.Context(), userIDFromContext(c), subjectID); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "favorite removed", fiber.Map{"subject_id": subjectID})
}

func (h *DirectoryHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
