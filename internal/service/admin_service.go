package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// ErrInvalidImport rejects building import payloads that fail schema
// validation.
var ErrInvalidImport = errors.New("building import payload failed schema validation")

// ErrInvalidQuietHours rejects quiet-hour windows with missing bounds.
var ErrInvalidQuietHours = errors.New("quiet hours require a start and end time")

// ErrInvalidVisibility rejects visibility policies with unknown modes.
var ErrInvalidVisibility = errors.New("invalid visibility mode")

const buildingImportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["buildings"],
  "properties": {
    "buildings": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "campus_id", "latitude", "longitude"],
        "properties": {
          "id": {"type": "string", "minLength": 1, "maxLength": 64},
          "name": {"type": "string", "minLength": 1, "maxLength": 255},
          "campus_id": {"type": "string", "minLength": 1, "maxLength": 64},
          "description": {"type": "string", "maxLength": 512},
          "latitude": {"type": "number", "minimum": -90, "maximum": 90},
          "longitude": {"type": "number", "minimum": -180, "maximum": 180},
          "footprint": {
            "type": "array",
            "items": {
              "type": "array",
              "minItems": 2,
              "maxItems": 2,
              "items": {"type": "number"}
            }
          }
        }
      }
    }
  }
}`

// AdminService holds the privileged campus operations: the kill switch,
// quiet hours, visibility policy, dashboard stats and building reference
// data import/export. Role checks happen in the router; this layer assumes
// the caller is already an administrator.
type AdminService interface {
	GetCampusConfig(ctx context.Context, campusID string) (dto.CampusConfigResponse, error)
	SetKillSwitch(ctx context.Context, campusID string, enabled bool) (dto.CampusConfigResponse, error)
	SetQuietHours(ctx context.Context, campusID string, payload dto.QuietHoursRequest) (dto.CampusConfigResponse, error)
	SetVisibilityPolicy(ctx context.Context, campusID string, policy map[string]models.DepartmentVisibility) (dto.CampusConfigResponse, error)
	PlatformStats(ctx context.Context, campusID string) (dto.PlatformStatsResponse, error)
	ImportBuildings(ctx context.Context, payload []byte) (dto.BuildingImportResponse, error)
	ExportBuildings(ctx context.Context, campusID string) ([]dto.BuildingResponse, error)
}

type adminService struct {
	campuses  repository.CampusRepository
	subjects  repository.SubjectRepository
	presence  repository.PresenceRepository
	buildings repository.BuildingRepository
	audit     repository.AuditRepository
	schema    *jsonschema.Schema
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdminService builds the admin console backend.
func NewAdminService(
	campuses repository.CampusRepository,
	subjects repository.SubjectRepository,
	presence repository.PresenceRepository,
	buildings repository.BuildingRepository,
	audit repository.AuditRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) (AdminService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("buildings.json", bytes.NewReader([]byte(buildingImportSchema))); err != nil {
		return nil, fmt.Errorf("failed to register building import schema: %w", err)
	}
	schema, err := compiler.Compile("buildings.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile building import schema: %w", err)
	}

	return &adminService{
		campuses:  campuses,
		subjects:  subjects,
		presence:  presence,
		buildings: buildings,
		audit:     audit,
		schema:    schema,
		validator: validate,
		logger:    logger.With().Str("component", "admin_service").Logger(),
		now:       time.Now,
	}, nil
}

func (s *adminService) GetCampusConfig(ctx context.Context, campusID string) (dto.CampusConfigResponse, error) {
	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.CampusConfigResponse{}, err
	}

	return dto.NewCampusConfigResponse(campus), nil
}

func (s *adminService) SetKillSwitch(ctx context.Context, campusID string, enabled bool) (dto.CampusConfigResponse, error) {
	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.CampusConfigResponse{}, err
	}

	campus.SharingEnabled = enabled
	if err := s.campuses.Save(ctx, &campus); err != nil {
		return dto.CampusConfigResponse{}, err
	}

	s.logger.Warn().Str("campus_id", campusID).Bool("enabled", enabled).Msg("campus kill switch toggled")

	return dto.NewCampusConfigResponse(campus), nil
}

func (s *adminService) SetQuietHours(ctx context.Context, campusID string, payload dto.QuietHoursRequest) (dto.CampusConfigResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CampusConfigResponse{}, err
	}
	if payload.Enabled && (payload.Start == "" || payload.End == "") {
		return dto.CampusConfigResponse{}, ErrInvalidQuietHours
	}

	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.CampusConfigResponse{}, err
	}

	campus.QuietHoursEnabled = payload.Enabled
	campus.QuietStart = payload.Start
	campus.QuietEnd = payload.End
	if err := s.campuses.Save(ctx, &campus); err != nil {
		return dto.CampusConfigResponse{}, err
	}

	return dto.NewCampusConfigResponse(campus), nil
}

func (s *adminService) SetVisibilityPolicy(ctx context.Context, campusID string, policy map[string]models.DepartmentVisibility) (dto.CampusConfigResponse, error) {
	for department, rule := range policy {
		if rule.Mode != models.VisibilityModeAllow && rule.Mode != models.VisibilityModeDeny {
			return dto.CampusConfigResponse{}, fmt.Errorf("%w %q for department %q", ErrInvalidVisibility, rule.Mode, department)
		}
	}

	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.CampusConfigResponse{}, err
	}

	if err := campus.SetVisibilityPolicy(policy); err != nil {
		return dto.CampusConfigResponse{}, err
	}
	if err := s.campuses.Save(ctx, &campus); err != nil {
		return dto.CampusConfigResponse{}, err
	}

	return dto.NewCampusConfigResponse(campus), nil
}

func (s *adminService) PlatformStats(ctx context.Context, campusID string) (dto.PlatformStatsResponse, error) {
	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.PlatformStatsResponse{}, err
	}

	subjects, err := s.subjects.List(ctx, repository.SubjectFilter{CampusID: campusID})
	if err != nil {
		return dto.PlatformStatsResponse{}, err
	}

	var consented, sharing int64
	for _, subject := range subjects {
		if subject.Consented {
			consented++
		}
		if subject.SharingState == models.SharingStateSharing {
			sharing++
		}
	}

	records, err := s.presence.ListActiveByCampus(ctx, campusID)
	if err != nil {
		return dto.PlatformStatsResponse{}, err
	}
	activeBuildings := make(map[string]struct{})
	cutoff := s.now().UTC().Add(-campus.RetentionWindow())
	for _, record := range records {
		if record.BuildingID != nil && record.CapturedAt.After(cutoff) {
			activeBuildings[*record.BuildingID] = struct{}{}
		}
	}

	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	disclosures, err := s.audit.CountSince(ctx, campusID, midnight)
	if err != nil {
		return dto.PlatformStatsResponse{}, err
	}

	total := int64(len(subjects))
	optInRate := 0.0
	if total > 0 {
		optInRate = float64(consented) / float64(total) * 100
	}

	return dto.PlatformStatsResponse{
		CampusID:          campusID,
		TotalSubjects:     total,
		ConsentedSubjects: consented,
		ActivelySharing:   sharing,
		OptInRatePercent:  optInRate,
		BuildingsActive:   int64(len(activeBuildings)),
		DisclosuresToday:  disclosures,
		RetentionHours:    campus.RetentionHours,
		SharingEnabled:    campus.SharingEnabled,
		GeneratedAt:       now,
	}, nil
}

// ImportBuildings validates the raw payload against the embedded JSON
// schema before touching the database, then upserts the reference rows.
func (s *adminService) ImportBuildings(ctx context.Context, payload []byte) (dto.BuildingImportResponse, error) {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return dto.BuildingImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return dto.BuildingImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var request dto.BuildingImportRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return dto.BuildingImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	buildings := make([]models.Building, 0, len(request.Buildings))
	for _, entry := range request.Buildings {
		building := models.Building{
			ID:          entry.ID,
			Name:        entry.Name,
			CampusID:    entry.CampusID,
			Description: entry.Description,
			Latitude:    entry.Latitude,
			Longitude:   entry.Longitude,
		}
		if err := building.SetFootprintPolygon(entry.Footprint); err != nil {
			return dto.BuildingImportResponse{}, err
		}
		buildings = append(buildings, building)
	}

	if err := s.buildings.UpsertMany(ctx, buildings); err != nil {
		return dto.BuildingImportResponse{}, err
	}

	s.logger.Info().Int("count", len(buildings)).Msg("building reference data imported")

	return dto.BuildingImportResponse{Imported: len(buildings)}, nil
}

func (s *adminService) ExportBuildings(ctx context.Context, campusID string) ([]dto.BuildingResponse, error) {
	buildings, err := s.buildings.ListByCampus(ctx, campusID)
	if err != nil {
		return nil, err
	}

	return dto.NewBuildingResponseSlice(buildings), nil
}
