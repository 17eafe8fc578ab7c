package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/repository"
	"github.com/noah-isme/green-campus-api/internal/service"
	"github.com/noah-isme/green-campus-api/internal/utils"
	"github.com/noah-isme/green-campus-api/internal/verification"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{geotrack.ErrInsufficientData, fiber.StatusBadRequest, "insufficient_data"},
	{service.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input"},
	{service.ErrInvalidAdjustment, fiber.StatusBadRequest, "invalid_input"},
	{models.ErrInvalidValue, fiber.StatusBadRequest, "invalid_input"},

	{service.ErrActivityNotFound, fiber.StatusNotFound, "not_found"},
	{service.ErrWalletNotFound, fiber.StatusNotFound, "not_found"},
	{service.ErrStudentNotFound, fiber.StatusNotFound, "not_found"},
	{service.ErrRewardNotFound, fiber.StatusNotFound, "not_found"},
	{service.ErrRedemptionNotFound, fiber.StatusNotFound, "not_found"},

	{service.ErrDuplicateAward, fiber.StatusConflict, "duplicate_award"},
	{service.ErrInsufficientCredits, fiber.StatusConflict, "insufficient_credits"},
	{service.ErrRewardUnavailable, fiber.StatusConflict, "reward_unavailable"},
	{service.ErrRedemptionCapReached, fiber.StatusConflict, "redemption_cap_reached"},
	{service.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition"},
	{service.ErrActivityFinalized, fiber.StatusConflict, "activity_finalized"},
	{service.ErrActivityNotApproved, fiber.StatusConflict, "activity_not_approved"},
	{repository.ErrStaleWallet, fiber.StatusConflict, "concurrent_update"},

	{verification.ErrUnknownActivityType, fiber.StatusUnprocessableEntity, "unknown_activity_type"},
	{service.ErrAwardQuantityMissing, fiber.StatusUnprocessableEntity, "award_quantity_missing"},

	{service.ErrEvidenceTooLarge, fiber.StatusRequestEntityTooLarge, "evidence_too_large"},
	{service.ErrEvidenceTypeNotAllowed, fiber.StatusUnsupportedMediaType, "evidence_type_not_allowed"},
	{service.ErrEvidenceStorageUnavailable, fiber.StatusServiceUnavailable, "evidence_storage_unavailable"},
}

// respondError translates service errors into the API error envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(utils.APIResponse{
			Success: false,
			Message: "validation failed",
			Code:    "invalid_input",
			Details: validationDetails(validationErrors),
		})
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return utils.SendErrorWithCode(c, mapping.status, mapping.code, err.Error())
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.SendErrorWithCode(c, fiberErr.Code, "invalid_input", fiberErr.Message)
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendErrorWithCode(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "invalid_input", message)
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}
