package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/observability"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

const auditBufferSize = 256

// AuditService records disclosure decisions. Record never blocks the caller
// and never fails the decision path: entries flow through a buffered channel
// into a single writer goroutine, which preserves submission order. Write
// failures go to the operational log and a drop counter, not to the viewer.
type AuditService interface {
	Record(decision models.PolicyDecision)
	Query(ctx context.Context, filter repository.AuditFilter) (dto.AuditPageResponse, error)
	Start(ctx context.Context)
}

type auditService struct {
	repo         repository.AuditRepository
	redis        *redis.Client
	redisStream  string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	entries      chan models.PolicyDecision
	writeTimeout time.Duration
}

// NewAuditService constructs the audit logger. redisClient and natsConn are
// optional mirrors for external compliance consumers.
func NewAuditService(repo repository.AuditRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AuditService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":audit"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".audit"
	}

	return &auditService{
		repo:         repo,
		redis:        redisClient,
		redisStream:  stream,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "audit_service").Logger(),
		entries:      make(chan models.PolicyDecision, auditBufferSize),
		writeTimeout: 5 * time.Second,
	}
}

func (s *auditService) Record(decision models.PolicyDecision) {
	select {
	case s.entries <- decision:
	default:
		// Full buffer must not block the decision path; drop and count.
		observability.AuditDroppedTotal().Inc()
		s.logger.Error().
			Str("viewer_id", decision.ViewerID).
			Str("subject_id", decision.SubjectID).
			Msg("audit buffer full, entry dropped")
	}
}

// Start runs the single writer until ctx is cancelled, then drains whatever
// is still buffered.
func (s *auditService) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case decision := <-s.entries:
				s.write(decision)
			case <-ctx.Done():
				for {
					select {
					case decision := <-s.entries:
						s.write(decision)
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *auditService) write(decision models.PolicyDecision) {
	entry := models.AuditEntry{
		ViewerID:    decision.ViewerID,
		ViewerRole:  decision.ViewerRole,
		SubjectID:   decision.SubjectID,
		CampusID:    decision.CampusID,
		Outcome:     decision.Outcome,
		Reason:      decision.Reason,
		BuildingID:  decision.BuildingID,
		RequestedAt: decision.RequestedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.repo.Append(ctx, &entry); err != nil {
		observability.AuditDroppedTotal().Inc()
		s.logger.Error().Err(err).
			Str("viewer_id", entry.ViewerID).
			Str("subject_id", entry.SubjectID).
			Msg("failed to append audit entry")
		return
	}

	observability.AuditAppendedTotal().Inc()

	if err := s.mirror(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to mirror audit entry to broker")
	}
}

func (s *auditService) mirror(ctx context.Context, entry models.AuditEntry) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(dto.NewAuditEntryResponse(entry))
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: s.redisStream,
			Values: map[string]interface{}{"entry": payload},
		}).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

// Query returns a read-only page of the audit trail, newest first. The next
// cursor is the smallest sequence number on the page.
func (s *auditService) Query(ctx context.Context, filter repository.AuditFilter) (dto.AuditPageResponse, error) {
	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		return dto.AuditPageResponse{}, err
	}

	page := dto.AuditPageResponse{Entries: dto.NewAuditEntryResponseSlice(entries)}
	if len(entries) > 0 && len(entries) == effectiveLimit(filter.Limit) {
		page.NextCursor = entries[len(entries)-1].Seq
	}

	return page, nil
}

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
