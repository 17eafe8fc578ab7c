// Package events fans ledger events out over Redis pub/sub and NATS.
package events

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
)

// Event types emitted by the ledger and redemption services.
const (
	CreditAwarded     = "credit.awarded"
	CreditAdjusted    = "credit.adjusted"
	RewardRedeemed    = "reward.redeemed"
	RedemptionUpdated = "redemption.updated"
)

// Event is the wire payload shared by every transport.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	StudentID  uint                   `json:"student_id"`
	WalletID   uint                   `json:"wallet_id,omitempty"`
	Amount     float64                `json:"amount,omitempty"`
	Balance    float64                `json:"balance"`
	Level      string                 `json:"level,omitempty"`
	Reference  string                 `json:"reference,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Handler receives events, including ones published by this node.
type Handler func(ctx context.Context, event Event)

// Publisher emits ledger events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus publishes events to the configured transports and dispatches them to local handlers.
// A nil *Bus is a valid no-op publisher.
type Bus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu       sync.RWMutex
	handlers []Handler
}

// NewBus constructs a bus. Either transport may be nil.
func NewBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Bus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &Bus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_bus").Logger(),
		nodeID:       uuid.NewString(),
	}
}

// NodeID identifies this process in published events.
func (b *Bus) NodeID() string {
	if b == nil {
		return ""
	}
	return b.nodeID
}

// Subscribe registers a handler for every event seen by this node.
func (b *Bus) Subscribe(handler Handler) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Publish dispatches the event locally and forwards it to the remote transports.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = b.nodeID

	b.dispatch(ctx, event)

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Start consumes remote events until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	if b == nil {
		return
	}
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

func (b *Bus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("event redis subscription closed")
			return
		}
		b.handlePayload(ctx, []byte(msg.Payload))
	}
}

func (b *Bus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handlePayload(ctx, msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain event nats subscription")
		}
	}()
}

func (b *Bus) handlePayload(ctx context.Context, payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid event payload")
		return
	}

	if event.Source == b.nodeID {
		return
	}

	b.dispatch(ctx, event)
}

func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
}
