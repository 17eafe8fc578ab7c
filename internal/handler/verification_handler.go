package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/middleware"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/utils"
)

// VerificationHandler exposes GPS analysis and verification runs.
type VerificationHandler struct {
	service   service.VerificationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(service service.VerificationService, validate *validator.Validate, logger zerolog.Logger) *VerificationHandler {
	return &VerificationHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "verification_handler").Logger(),
	}
}

// Register wires routes onto the versioned API root.
func (h *VerificationHandler) Register(router fiber.Router) {
	reviewer := middleware.AuthOptions{Role: middleware.AuthRoleReviewer}

	router.Post("/tracks/analyze", middleware.WithAuth(h.analyze, middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}))
	router.Post("/activities/:id/verify", middleware.WithAuth(h.verify, reviewer))
	router.Get("/activities/:id/verifications", middleware.WithAuth(h.logs, reviewer))
}

func (h *VerificationHandler) analyze(c *fiber.Ctx) error {
	var req dto.TrackAnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err)
	}

	summary, err := h.service.AnalyzeTrack(c.UserContext(), dto.ToPoints(req.Points))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "track analyzed", summary)
}

func (h *VerificationHandler) verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := h.validator.Struct(req); err != nil {
			return respondError(c, h.logger, err)
		}
	}

	result, err := h.service.Verify(c.UserContext(), c.Params("id"), dto.ToPoints(req.Track))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activity verified", result)
}

func (h *VerificationHandler) logs(c *fiber.Ctx) error {
	entries, err := h.service.Logs(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "verification logs retrieved", entries)
}
