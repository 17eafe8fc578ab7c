package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/utils"
)

// AdminHandler groups privileged ledger, catalog and audit operations.
type AdminHandler struct {
	ledger         service.LedgerService
	rewards        service.RewardService
	redemptions    service.RedemptionService
	audit          service.AuditService
	reconciliation service.ReconciliationService
	validator      *validator.Validate
	logger         zerolog.Logger
}

// AdminServices bundles the services the admin endpoints call.
type AdminServices struct {
	Ledger         service.LedgerService
	Rewards        service.RewardService
	Redemptions    service.RedemptionService
	Audit          service.AuditService
	Reconciliation service.ReconciliationService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(services AdminServices, validate *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:         services.Ledger,
		rewards:        services.Rewards,
		redemptions:    services.Redemptions,
		audit:          services.Audit,
		reconciliation: services.Reconciliation,
		validator:      validate,
		logger:         logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires routes onto the /admin group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Use(middleware.RequireRole(middleware.AuthRoleAdmin))

	router.Post("/wallets/:id/adjust", h.adjust)
	router.Post("/activities/:id/award", h.award)
	router.Post("/rewards", h.createReward)
	router.Patch("/rewards/:id", h.updateReward)
	router.Patch("/redemptions/:id", h.transition)
	router.Post("/reconciliation", h.reconcile)
	router.Get("/audit-logs", h.auditLogs)
}

func (h *AdminHandler) adjust(c *fiber.Ctx) error {
	walletID, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.ledger.Adjust(c.UserContext(), walletID, req.Amount, models.TransactionType(req.Type), req.Description, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "wallet adjusted", result)
}

// award retries crediting an approved activity whose award did not complete.
func (h *AdminHandler) award(c *fiber.Ctx) error {
	result, err := h.ledger.Award(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "credits awarded", result)
}

func (h *AdminHandler) createReward(c *fiber.Ctx) error {
	var req dto.RewardCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	reward, err := h.rewards.Create(c.UserContext(), req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reward created", reward)
}

func (h *AdminHandler) updateReward(c *fiber.Ctx) error {
	rewardID, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.RewardUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	reward, err := h.rewards.Update(c.UserContext(), rewardID, req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "reward updated", reward)
}

func (h *AdminHandler) transition(c *fiber.Ctx) error {
	redemptionID, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.RedemptionTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err)
	}

	redemption, err := h.redemptions.Transition(c.UserContext(), redemptionID, models.RedemptionStatus(req.Status), req.Notes, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "redemption updated", redemption)
}

func (h *AdminHandler) reconcile(c *fiber.Ctx) error {
	report, err := h.reconciliation.Run(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "ledger reconciled"
	if len(report.Mismatches) > 0 {
		message = "ledger mismatches found"
	}
	return utils.SendSuccess(c, message, report)
}

func (h *AdminHandler) auditLogs(c *fiber.Ctx) error {
	page, pageSize, ok := pagination(c)
	if !ok {
		return badRequest(c, "invalid pagination")
	}

	req := dto.AuditListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
	}
	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return badRequest(c, "invalid actor_id")
	}
	if actorID != nil {
		req.ActorID = *actorID
	}

	result, err := h.audit.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "audit logs retrieved", result)
}
