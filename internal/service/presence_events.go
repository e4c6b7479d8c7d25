package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/observability"
)

const presenceEventBufferSize = 16

// Presence event kinds broadcast to live map feed subscribers.
const (
	EventPresenceUpdated = "presence_updated"
	EventPresenceCleared = "presence_cleared"
	EventSharingChanged  = "sharing_changed"
)

// PresenceEvents fans presence-change notifications out to live map feed
// subscribers on this node and, when configured, across nodes via a redis
// channel and a NATS subject. Events carry no location data.
type PresenceEvents interface {
	Publish(ctx context.Context, campusID, subjectID, kind string)
	Subscribe(campusID string) (<-chan dto.PresenceEvent, func())
	OnEvent(fn func(dto.PresenceEvent))
	Start(ctx context.Context)
}

type presenceEvents struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *presenceBroker
	nodeID       string
	now          func() time.Time

	hookMu sync.RWMutex
	hooks  []func(dto.PresenceEvent)
}

type presenceEventEnvelope struct {
	Source string            `json:"source"`
	Event  dto.PresenceEvent `json:"event"`
}

type presenceBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.PresenceEvent]struct{}
}

// NewPresenceEvents constructs the event fan-out. Both redisClient and
// natsConn may be nil for single-node deployments.
func NewPresenceEvents(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) PresenceEvents {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":presence"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".presence"
	}

	return &presenceEvents{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "presence_events").Logger(),
		broker:       &presenceBroker{subscribers: make(map[string]map[chan dto.PresenceEvent]struct{})},
		nodeID:       uuid.NewString(),
		now:          time.Now,
	}
}

func (s *presenceEvents) Publish(ctx context.Context, campusID, subjectID, kind string) {
	event := dto.PresenceEvent{
		CampusID:  campusID,
		SubjectID: subjectID,
		Kind:      kind,
		SentAt:    s.now().UTC(),
	}

	s.broker.broadcast(campusID, event)
	s.notifyHooks(event)
	observability.PresenceEventsTotal().WithLabelValues(kind).Inc()

	if err := s.mirror(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to mirror presence event to broker")
	}
}

// OnEvent registers a hook invoked for every event seen on this node, local
// or mirrored. Hooks must not block.
func (s *presenceEvents) OnEvent(fn func(dto.PresenceEvent)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *presenceEvents) notifyHooks(event dto.PresenceEvent) {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	for _, hook := range s.hooks {
		hook(event)
	}
}

func (s *presenceEvents) Subscribe(campusID string) (<-chan dto.PresenceEvent, func()) {
	channel := make(chan dto.PresenceEvent, presenceEventBufferSize)
	s.broker.subscribe(campusID, channel)
	observability.LiveFeedClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(campusID, channel)
		observability.LiveFeedClientsActive().Dec()
	}

	return channel, cleanup
}

// Start consumes cross-node mirrors so events published on other nodes reach
// this node's live feed subscribers.
func (s *presenceEvents) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *presenceEvents) mirror(ctx context.Context, event dto.PresenceEvent) error {
	envelope := presenceEventEnvelope{Source: s.nodeID, Event: event}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
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

func (s *presenceEvents) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("presence event redis subscription closed")
			return
		}
		s.handleMirror([]byte(msg.Payload))
	}
}

func (s *presenceEvents) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "presence-events", func(msg *nats.Msg) {
		s.handleMirror(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats presence subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain presence nats subscription")
		}
	}()
}

func (s *presenceEvents) handleMirror(payload []byte) {
	var envelope presenceEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid presence event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	observability.PresenceEventsTotal().WithLabelValues(envelope.Event.Kind).Inc()
	s.broker.broadcast(envelope.Event.CampusID, envelope.Event)
	s.notifyHooks(envelope.Event)
}

func (b *presenceBroker) subscribe(campusID string, ch chan dto.PresenceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[campusID]; !exists {
		b.subscribers[campusID] = make(map[chan dto.PresenceEvent]struct{})
	}
	b.subscribers[campusID][ch] = struct{}{}
}

func (b *presenceBroker) unsubscribe(campusID string, ch chan dto.PresenceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[campusID]; ok {
		delete(subscribers, ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, campusID)
		}
	}
	close(ch)
}

func (b *presenceBroker) broadcast(campusID string, event dto.PresenceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[campusID] {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop rather than block the publisher.
		}
	}
}
