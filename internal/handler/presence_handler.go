package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
	"github.com/prmsu-campus/presence-api/internal/service"
	"github.com/prmsu-campus/presence-api/internal/utils"
)

// PresenceHandler wires subject self-service presence routes.
type PresenceHandler struct {
	presence  service.PresenceService
	consent   service.ConsentService
	audit     service.AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPresenceHandler constructs the handler.
func NewPresenceHandler(presence service.PresenceService, consent service.ConsentService, audit service.AuditService, validator *validator.Validate, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence:  presence,
		consent:   consent,
		audit:     audit,
		validator: validator,
		logger:    logger.With().Str("component", "presence_handler").Logger(),
	}
}

// Register attaches presence endpoints to the router group.
func (h *PresenceHandler) Register(router fiber.Router) {
	router.Get("/me", h.getOwn)
	router.Put("/me", h.setPresence)
	router.Post("/me/pause", h.pause)
	router.Post("/me/resume", h.resume)
	router.Put("/me/status", h.setStatus)
	router.Get("/me/status/presets", h.statusPresets)
	router.Put("/me/granularity", h.setGranularity)
	router.Put("/me/auto-share", h.setAutoShare)
	router.Get("/me/profile", h.profile)
	router.Post("/me/opt-in", h.optIn)
	router.Post("/me/opt-out", h.optOut)
	router.Get("/me/export", h.export)
	router.Get("/me/access-log", h.accessLog)
}

func (h *PresenceHandler) getOwn(c *fiber.Ctx) error {
	subjectID := userIDFromContext(c)
	record, err := h.presence.GetPresence(c.Context(), subjectID, subjectID)
	if err != nil {
		return h.handleError(c, err)
	}
	if record == nil {
		return utils.SendSuccess(c, "no active presence", nil)
	}

	return utils.SendSuccess(c, "presence retrieved", record)
}

func (h *PresenceHandler) setPresence(c *fiber.Ctx) error {
	var payload dto.SetPresenceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	source := payload.Source
	if source == "" {
		source = models.PresenceSourceManual
	}

	record, err := h.presence.SetPresence(c.Context(), userIDFromContext(c), payload.BuildingID, source)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "presence updated", record)
}

func (h *PresenceHandler) pause(c *fiber.Ctx) error {
	if err := h.presence.Pause(c.Context(), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "sharing paused", nil)
}

func (h *PresenceHandler) resume(c *fiber.Ctx) error {
	if err := h.presence.Resume(c.Context(), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "sharing resumed", nil)
}

func (h *PresenceHandler) setStatus(c *fiber.Ctx) error {
	var payload dto.StatusMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	profile, err := h.presence.SetStatusMessage(c.Context(), userIDFromContext(c), payload.Message)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "status updated", profile)
}

func (h *PresenceHandler) statusPresets(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "status presets", fiber.Map{"presets": models.StatusMessagePresets})
}

func (h *PresenceHandler) setGranularity(c *fiber.Ctx) error {
	var payload dto.GranularityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.presence.SetGranularity(c.Context(), userIDFromContext(c), payload.Granularity); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "granularity updated", fiber.Map{"granularity": payload.Granularity})
}

func (h *PresenceHandler) setAutoShare(c *fiber.Ctx) error {
	var payload dto.AutoShareRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.presence.SetAutoShare(c.Context(), userIDFromContext(c), payload.Enabled); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "auto-share updated", fiber.Map{"enabled": payload.Enabled})
}

func (h *PresenceHandler) profile(c *fiber.Ctx) error {
	profile, err := h.presence.GetProfile(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *PresenceHandler) optIn(c *fiber.Ctx) error {
	profile, err := h.consent.OptIn(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "sharing enabled", profile)
}

func (h *PresenceHandler) optOut(c *fiber.Ctx) error {
	if err := h.consent.OptOut(c.Context(), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "sharing disabled and data scheduled for removal", nil)
}

func (h *PresenceHandler) export(c *fiber.Ctx) error {
	export, err := h.consent.ExportData(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "export generated", export)
}

// accessLog lets a subject review who was shown their location and when.
func (h *PresenceHandler) accessLog(c *fiber.Ctx) error {
	beforeSeq, err := parseQueryUint64(c, "before")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid cursor")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	page, err := h.audit.Query(c.Context(), repository.AuditFilter{
		SubjectID: userIDFromContext(c),
		BeforeSeq: beforeSeq,
		Limit:     limit,
	})
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "access log retrieved", page)
}

func (h *PresenceHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrNotConsented):
		return utils.SendError(c, fiber.StatusForbidden, "location sharing is not enabled")
	case errors.Is(err, service.ErrSharingSuspended):
		return utils.SendError(c, fiber.StatusConflict, "sharing is disabled until you opt in")
	case errors.Is(err, service.ErrSystemPaused):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "location sharing is temporarily disabled")
	case errors.Is(err, service.ErrUnknownBuilding):
		return utils.SendError(c, fiber.StatusBadRequest, "unknown building")
	case errors.Is(err, service.ErrInvalidSource):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid presence source")
	case errors.Is(err, service.ErrStatusEmpty):
		return utils.SendError(c, fiber.StatusBadRequest, "status message must not be empty")
	case errors.Is(err, service.ErrBadGranularity):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid granularity")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *PresenceHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
