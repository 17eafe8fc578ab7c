package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/events"
	"github.com/noah-isme/green-campus-api/internal/observability"
)

const walletStreamBufferSize = 16

// WalletStream fans ledger events out to the owning student's live connections.
type WalletStream interface {
	Subscribe(studentID uint) (<-chan dto.WalletEventResponse, func())
	HandleEvent(ctx context.Context, event events.Event)
}

type walletStream struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.WalletEventResponse]struct{}
	logger      zerolog.Logger
}

// NewWalletStream constructs an empty stream hub. Register HandleEvent on the event bus to feed it.
func NewWalletStream(logger zerolog.Logger) WalletStream {
	return &walletStream{
		subscribers: make(map[uint]map[chan dto.WalletEventResponse]struct{}),
		logger:      logger.With().Str("component", "wallet_stream").Logger(),
	}
}

func (s *walletStream) Subscribe(studentID uint) (<-chan dto.WalletEventResponse, func()) {
	ch := make(chan dto.WalletEventResponse, walletStreamBufferSize)

	s.mu.Lock()
	if _, ok := s.subscribers[studentID]; !ok {
		s.subscribers[studentID] = make(map[chan dto.WalletEventResponse]struct{})
	}
	s.subscribers[studentID][ch] = struct{}{}
	s.mu.Unlock()
	observability.WalletStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.mu.Lock()
			if subscribers, ok := s.subscribers[studentID]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(s.subscribers, studentID)
				}
			}
			close(ch)
			s.mu.Unlock()
			observability.WalletStreamClients().Dec()
		})
	}

	return ch, cleanup
}

// HandleEvent delivers the event to the student's subscribers. Slow consumers miss events rather than block the bus.
func (s *walletStream) HandleEvent(_ context.Context, event events.Event) {
	if event.StudentID == 0 {
		return
	}

	payload := dto.WalletEventResponse{
		ID:         event.ID,
		Type:       event.Type,
		WalletID:   event.WalletID,
		Amount:     event.Amount,
		Balance:    event.Balance,
		Level:      event.Level,
		Reference:  event.Reference,
		OccurredAt: event.OccurredAt,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subscribers[event.StudentID] {
		select {
		case ch <- payload:
		default:
			s.logger.Debug().Uint("student_id", event.StudentID).Str("type", event.Type).Msg("dropping wallet event for slow consumer")
		}
	}
}
