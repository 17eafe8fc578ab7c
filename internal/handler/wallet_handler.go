package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/utils"
)

// WalletHandler serves wallet summaries, history and the leaderboard.
type WalletHandler struct {
	service service.WalletService
	logger  zerolog.Logger
}

// NewWalletHandler constructs the handler.
func NewWalletHandler(service service.WalletService, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		logger:  logger.With().Str("component", "wallet_handler").Logger(),
	}
}

// Register wires routes onto the versioned API root.
func (h *WalletHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	router.Get("/wallet", middleware.WithAuth(h.wallet, student))
	router.Get("/wallet/transactions", middleware.WithAuth(h.transactions, student))
	router.Get("/leaderboard", middleware.WithAuth(h.leaderboard, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

func (h *WalletHandler) wallet(c *fiber.Ctx) error {
	wallet, err := h.service.GetWallet(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "wallet retrieved", wallet)
}

func (h *WalletHandler) transactions(c *fiber.Ctx) error {
	page, pageSize, ok := pagination(c)
	if !ok {
		return badRequest(c, "invalid pagination")
	}

	result, err := h.service.Transactions(c.UserContext(), userIDFromContext(c), dto.TransactionListRequest{
		Page:     page,
		PageSize: pageSize,
		Type:     c.Query("type"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "transactions retrieved", result)
}

func (h *WalletHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	entries, err := h.service.Leaderboard(c.UserContext(), limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.OK(c, entries, "leaderboard retrieved", fiber.Map{"count": len(entries)})
}
