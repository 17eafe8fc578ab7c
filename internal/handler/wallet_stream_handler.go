package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/service"
)

const defaultStreamPingInterval = 30 * time.Second

// WalletStreamHandler pushes the authenticated student's ledger events over a websocket.
type WalletStreamHandler struct {
	stream       service.WalletStream
	logger       zerolog.Logger
	pingInterval time.Duration
}

// NewWalletStreamHandler constructs the handler. A non-positive interval uses the default keepalive.
func NewWalletStreamHandler(stream service.WalletStream, logger zerolog.Logger, pingInterval time.Duration) *WalletStreamHandler {
	if pingInterval <= 0 {
		pingInterval = defaultStreamPingInterval
	}
	return &WalletStreamHandler{
		stream:       stream,
		logger:       logger.With().Str("component", "wallet_stream_handler").Logger(),
		pingInterval: pingInterval,
	}
}

// Register wires the upgrade route onto the versioned API root.
func (h *WalletStreamHandler) Register(router fiber.Router) {
	router.Use("/ws/wallet", middleware.WithAuth(func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("stream_student_id", userIDFromContext(c))
		return c.Next()
	}, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))

	router.Get("/ws/wallet", websocket.New(h.handleConnection))
}

func (h *WalletStreamHandler) handleConnection(conn *websocket.Conn) {
	studentID, _ := conn.Locals("stream_student_id").(uint)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	correlationID, _ := conn.Locals("correlation_id").(string)
	logger := h.logger.With().Uint("student_id", studentID).Str("correlation_id", correlationID).Logger()
	events, cancel := h.stream.Subscribe(studentID)
	defer cancel()

	// The reader only notices the client going away; clients do not send commands.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Debug().Msg("wallet stream opened")
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("wallet stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("wallet stream ping failed")
				return
			}
		case <-closed:
			logger.Debug().Msg("wallet stream closed by client")
			return
		}
	}
}
