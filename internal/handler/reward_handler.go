package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/utils"
)

// RewardHandler serves the reward catalog and student redemptions.
type RewardHandler struct {
	rewards     service.RewardService
	redemptions service.RedemptionService
	logger      zerolog.Logger
}

// NewRewardHandler constructs the handler.
func NewRewardHandler(rewards service.RewardService, redemptions service.RedemptionService, logger zerolog.Logger) *RewardHandler {
	return &RewardHandler{
		rewards:     rewards,
		redemptions: redemptions,
		logger:      logger.With().Str("component", "reward_handler").Logger(),
	}
}

// Register wires routes onto the versioned API root.
func (h *RewardHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	router.Get("/rewards", middleware.WithAuth(h.list, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
	router.Post("/rewards/:id/redeem",
		middleware.RateLimit("redeem", 5, time.Minute),
		middleware.WithAuth(h.redeem, student),
	)
	router.Get("/redemptions", middleware.WithAuth(h.redemptionsList, student))
}

func (h *RewardHandler) list(c *fiber.Ctx) error {
	page, pageSize, ok := pagination(c)
	if !ok {
		return badRequest(c, "invalid pagination")
	}

	result, err := h.rewards.List(c.UserContext(), dto.RewardListRequest{
		Page:     page,
		PageSize: pageSize,
		Category: c.Query("category"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "rewards retrieved", result)
}

func (h *RewardHandler) redeem(c *fiber.Ctx) error {
	rewardID, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.redemptions.Redeem(c.UserContext(), userIDFromContext(c), rewardID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reward redeemed", result)
}

func (h *RewardHandler) redemptionsList(c *fiber.Ctx) error {
	page, pageSize, ok := pagination(c)
	if !ok {
		return badRequest(c, "invalid pagination")
	}

	result, err := h.redemptions.List(c.UserContext(), userIDFromContext(c), dto.RedemptionListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "redemptions retrieved", result)
}
