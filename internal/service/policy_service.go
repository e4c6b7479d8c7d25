package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/observability"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// PolicyService decides, per (viewer, subject) pair, what the viewer may
// see. Evaluation is a pure read: it never mutates subject or presence
// state, and every decision is handed to the audit logger best-effort.
//
// Denial is a first-class outcome. The error return is reserved for genuine
// failures (unknown subject, storage unavailable); even then the returned
// decision is a deny, never an allow: the evaluator fails closed.
type PolicyService interface {
	Evaluate(ctx context.Context, viewer models.Viewer, subjectID string) (models.PolicyDecision, error)
	EvaluateAll(ctx context.Context, viewer models.Viewer, campusID string) ([]models.PolicyDecision, error)
}

type policyService struct {
	subjects repository.SubjectRepository
	presence repository.PresenceRepository
	campuses repository.CampusRepository
	audit    AuditService
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewPolicyService builds the policy evaluator.
func NewPolicyService(
	subjects repository.SubjectRepository,
	presence repository.PresenceRepository,
	campuses repository.CampusRepository,
	audit AuditService,
	logger zerolog.Logger,
) PolicyService {
	return &policyService{
		subjects: subjects,
		presence: presence,
		campuses: campuses,
		audit:    audit,
		logger:   logger.With().Str("component", "policy_service").Logger(),
		tracer:   otel.Tracer("github.com/prmsu-campus/presence-api/internal/service/policy"),
		now:      time.Now,
	}
}

// evaluationSnapshot bundles the state an evaluation reads. All fields are
// loaded before any rule runs, so a concurrent mutation cannot flip a value
// between two rules of the same decision. The loads are separate queries,
// not one transaction: a record written mid-snapshot is evaluated against
// settings read a moment earlier, and every rule still applies to whatever
// pairing was read.
type evaluationSnapshot struct {
	subject models.Subject
	campus  models.Campus
	record  *models.PresenceRecord
}

func (s *policyService) Evaluate(ctx context.Context, viewer models.Viewer, subjectID string) (models.PolicyDecision, error) {
	attrs := []attribute.KeyValue{
		attribute.String("policy.viewer_id", viewer.ID),
		attribute.String("policy.viewer_role", viewer.Role),
		attribute.String("policy.subject_id", subjectID),
	}
	spanCtx, span := s.tracer.Start(ctx, "policy.evaluate", trace.WithAttributes(attrs...))
	defer span.End()

	snapshot, err := s.snapshot(spanCtx, subjectID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return s.finish(s.deny(viewer, subjectID, "", models.ReasonEvaluationError)), err
		}
		span.RecordError(err)
		// Fail closed: internal failures never resolve to an allow.
		return s.finish(s.deny(viewer, subjectID, "", models.ReasonEvaluationError)), err
	}

	decision := s.decide(viewer, snapshot)
	return s.finish(decision), nil
}

// EvaluateAll evaluates every subject on the campus against one viewer,
// feeding the directory and map surfaces. Each pairwise decision is audited
// exactly as a single Evaluate would be.
func (s *policyService) EvaluateAll(ctx context.Context, viewer models.Viewer, campusID string) ([]models.PolicyDecision, error) {
	spanCtx, span := s.tracer.Start(ctx, "policy.evaluate_all", trace.WithAttributes(
		attribute.String("policy.viewer_id", viewer.ID),
		attribute.String("policy.campus_id", campusID),
	))
	defer span.End()

	campus, err := s.campuses.GetByID(spanCtx, campusID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	subjects, err := s.subjects.List(spanCtx, repository.SubjectFilter{CampusID: campusID})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, err := s.presence.ListActiveByCampus(spanCtx, campusID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	recordsBySubject := make(map[string]models.PresenceRecord, len(records))
	for _, record := range records {
		recordsBySubject[record.SubjectID] = record
	}

	decisions := make([]models.PolicyDecision, 0, len(subjects))
	for _, subject := range subjects {
		snapshot := evaluationSnapshot{subject: subject, campus: campus}
		if record, ok := recordsBySubject[subject.ID]; ok {
			snapshot.record = &record
		}
		decisions = append(decisions, s.finish(s.decide(viewer, snapshot)))
	}

	return decisions, nil
}

// decide applies the disclosure rules in order; the first matching rule
// wins.
func (s *policyService) decide(viewer models.Viewer, snapshot evaluationSnapshot) models.PolicyDecision {
	subject := snapshot.subject
	campus := snapshot.campus
	now := s.now()

	if !campus.SharingEnabled {
		return s.deny(viewer, subject.ID, campus.ID, models.ReasonSystemDisabled)
	}

	if !subject.Consented || subject.SharingState != models.SharingStateSharing {
		return s.deny(viewer, subject.ID, campus.ID, models.ReasonNotSharing)
	}

	if campus.InQuietHours(now) {
		return s.deny(viewer, subject.ID, campus.ID, models.ReasonQuietHours)
	}

	if !departmentVisible(campus.VisibilityPolicy(), subject.Department, viewer.Role) {
		return s.deny(viewer, subject.ID, campus.ID, models.ReasonRoleRestricted)
	}

	decision := models.PolicyDecision{
		ViewerID:      viewer.ID,
		ViewerRole:    viewer.Role,
		SubjectID:     subject.ID,
		CampusID:      campus.ID,
		RequestedAt:   now.UTC(),
		Reason:        models.ReasonNone,
		StatusMessage: subject.StatusMessage,
	}

	record := snapshot.record
	if record != nil && record.StaleAt(now.UTC(), campus.RetentionWindow()) {
		// Stale is internal only: the viewer sees the subject as absent.
		record = nil
	}

	switch subject.Granularity {
	case models.GranularityBuilding:
		decision.Outcome = models.OutcomeAllowBuilding
		if record != nil {
			decision.OnCampus = true
			decision.BuildingID = record.BuildingID
		}
	default:
		decision.Outcome = models.OutcomeAllowCampus
		decision.OnCampus = record != nil
	}

	return decision
}

func (s *policyService) snapshot(ctx context.Context, subjectID string) (evaluationSnapshot, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return evaluationSnapshot{}, ErrSubjectNotFound
		}
		return evaluationSnapshot{}, err
	}

	// The kill switch lives on the campus row and is re-read here on every
	// evaluation; a flip is visible to the very next call.
	campus, err := s.campuses.GetByID(ctx, subject.CampusID)
	if err != nil {
		return evaluationSnapshot{}, err
	}

	snapshot := evaluationSnapshot{subject: subject, campus: campus}

	record, err := s.presence.GetActive(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return evaluationSnapshot{}, err
		}
	} else {
		snapshot.record = &record
	}

	return snapshot, nil
}

func (s *policyService) deny(viewer models.Viewer, subjectID, campusID, reason string) models.PolicyDecision {
	return models.PolicyDecision{
		ViewerID:    viewer.ID,
		ViewerRole:  viewer.Role,
		SubjectID:   subjectID,
		CampusID:    campusID,
		RequestedAt: s.now().UTC(),
		Outcome:     models.OutcomeDeny,
		Reason:      reason,
	}
}

// finish records the decision metric and hands it to the audit logger.
// Audit recording is best-effort and never blocks or fails the evaluation.
func (s *policyService) finish(decision models.PolicyDecision) models.PolicyDecision {
	observability.PolicyDecisionsTotal().WithLabelValues(decision.Outcome, decision.Reason).Inc()
	if s.audit != nil {
		s.audit.Record(decision)
	}

	return decision
}

// departmentVisible applies the configured per-department visibility rule.
// Departments without a rule are visible to everyone.
func departmentVisible(policy map[string]models.DepartmentVisibility, department, role string) bool {
	if len(policy) == 0 {
		return true
	}
	rule, ok := policy[department]
	if !ok {
		return true
	}

	listed := false
	for _, r := range rule.Roles {
		if r == role {
			listed = true
			break
		}
	}

	switch rule.Mode {
	case models.VisibilityModeAllow:
		return listed
	case models.VisibilityModeDeny:
		return !listed
	default:
		return true
	}
}
