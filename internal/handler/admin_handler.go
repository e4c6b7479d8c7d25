package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/repository"
	"github.com/prmsu-campus/presence-api/internal/service"
	"github.com/prmsu-campus/presence-api/internal/utils"
)

// AdminHandler wires campus administration routes.
type AdminHandler struct {
	admin     service.AdminService
	consent   service.ConsentService
	audit     service.AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(admin service.AdminService, consent service.ConsentService, audit service.AuditService, validator *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		consent:   consent,
		audit:     audit,
		validator: validator,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches admin endpoints to the router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/campuses/:campus_id/config", h.campusConfig)
	router.Put("/campuses/:campus_id/kill-switch", h.setKillSwitch)
	router.Put("/campuses/:campus_id/retention", h.setRetention)
	router.Put("/campuses/:campus_id/quiet-hours", h.setQuietHours)
	router.Put("/campuses/:campus_id/visibility", h.setVisibility)
	router.Get("/campuses/:campus_id/stats", h.stats)
	router.Post("/campuses/:campus_id/purge", h.purge)
	router.Post("/buildings/import", h.importBuildings)
	router.Get("/campuses/:campus_id/buildings/export", h.exportBuildings)
	router.Get("/audit", h.queryAudit)
}

func (h *AdminHandler) campusConfig(c *fiber.Ctx) error {
	config, err := h.admin.GetCampusConfig(c.Context(), c.Params("campus_id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "campus configuration retrieved", config)
}

func (h *AdminHandler) setKillSwitch(c *fiber.Ctx) error {
	var payload dto.KillSwitchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	config, err := h.admin.SetKillSwitch(c.Context(), c.Params("campus_id"), payload.Enabled)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "kill switch updated", config)
}

func (h *AdminHandler) setRetention(c *fiber.Ctx) error {
	var payload dto.RetentionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	config, err := h.consent.SetRetentionHours(c.Context(), c.Params("campus_id"), payload.Hours)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "retention period updated", config)
}

func (h *AdminHandler) setQuietHours(c *fiber.Ctx) error {
	var payload dto.QuietHoursRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	config, err := h.admin.SetQuietHours(c.Context(), c.Params("campus_id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiet hours updated", config)
}

func (h *AdminHandler) setVisibility(c *fiber.Ctx) error {
	var payload dto.VisibilityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	config, err := h.admin.SetVisibilityPolicy(c.Context(), c.Params("campus_id"), payload.Policy)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "visibility policy updated", config)
}

func (h *AdminHandler) stats(c *fiber.Ctx) error {
	stats, err := h.admin.PlatformStats(c.Context(), c.Params("campus_id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "platform stats retrieved", stats)
}

func (h *AdminHandler) purge(c *fiber.Ctx) error {
	result, err := h.consent.PurgeAll(c.Context(), c.Params("campus_id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "presence data purged", result)
}

func (h *AdminHandler) importBuildings(c *fiber.Ctx) error {
	result, err := h.admin.ImportBuildings(c.Context(), c.Body())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "buildings imported", result)
}

func (h *AdminHandler) exportBuildings(c *fiber.Ctx) error {
	buildings, err := h.admin.ExportBuildings(c.Context(), c.Params("campus_id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "buildings exported", buildings)
}

func (h *AdminHandler) queryAudit(c *fiber.Ctx) error {
	beforeSeq, err := parseQueryUint64(c, "before")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid cursor")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	filter := repository.AuditFilter{
		ViewerID:  strings.TrimSpace(c.Query("viewer_id")),
		SubjectID: strings.TrimSpace(c.Query("subject_id")),
		CampusID:  strings.TrimSpace(c.Query("campus_id")),
		BeforeSeq: beforeSeq,
		Limit:     limit,
	}

	if from := strings.TrimSpace(c.Query("from")); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid from timestamp")
		}
		filter.From = parsed
	}
	if to := strings.TrimSpace(c.Query("to")); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid to timestamp")
		}
		filter.To = parsed
	}

	page, err := h.audit.Query(c.Context(), filter)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "audit entries retrieved", page)
}

func (h *AdminHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "campus not found")
	case errors.Is(err, service.ErrInvalidRetentionPeriod):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidQuietHours):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidVisibility):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidImport):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AdminHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
