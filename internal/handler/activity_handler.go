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

// ActivityHandler exposes submission, review and evidence endpoints.
type ActivityHandler struct {
	activities service.ActivityService
	evidence   service.EvidenceService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewActivityHandler constructs the handler. evidence may be nil when uploads are disabled.
func NewActivityHandler(activities service.ActivityService, evidence service.EvidenceService, validate *validator.Validate, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		evidence:   evidence,
		validator:  validate,
		logger:     logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires activity routes onto the /activities group.
func (h *ActivityHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}
	reviewer := middleware.AuthOptions{Role: middleware.AuthRoleReviewer}
	authenticated := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}

	router.Post("", middleware.WithAuth(h.submit, student))
	router.Get("", middleware.WithAuth(h.list, authenticated))
	router.Get("/:id", middleware.WithAuth(h.get, authenticated))
	router.Post("/:id/evidence", middleware.WithAuth(h.attachEvidence, student))
	router.Patch("/:id/review", middleware.WithAuth(h.review, reviewer))
	router.Patch("/:id/notes", middleware.WithAuth(h.updateNotes, reviewer))
}

func (h *ActivityHandler) submit(c *fiber.Ctx) error {
	var req dto.ActivitySubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	activity, err := h.activities.Submit(c.UserContext(), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity submitted", activity)
}

// list returns the caller's own activities; reviewers and admins may list everything.
func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, pageSize, ok := pagination(c)
	if !ok {
		return badRequest(c, "invalid pagination")
	}

	req := dto.ActivityListRequest{
		Page:         page,
		PageSize:     pageSize,
		Status:       c.Query("status"),
		ActivityType: c.Query("activity_type"),
	}

	if userRoleFromContext(c) == middleware.AuthRoleStudent {
		studentID := userIDFromContext(c)
		req.StudentID = &studentID
	} else {
		studentID, err := parseQueryUint(c, "student_id")
		if err != nil {
			return badRequest(c, "invalid student_id")
		}
		req.StudentID = studentID
	}

	result, err := h.activities.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activities retrieved", result)
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	activity, err := h.activities.Get(c.UserContext(), c.Params("id"), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activity retrieved", activity)
}

func (h *ActivityHandler) attachEvidence(c *fiber.Ctx) error {
	if h.evidence == nil {
		return respondError(c, h.logger, service.ErrEvidenceStorageUnavailable)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	result, err := h.evidence.Attach(c.UserContext(), userIDFromContext(c), c.Params("id"), file)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evidence attached", result)
}

func (h *ActivityHandler) review(c *fiber.Ctx) error {
	var req dto.ActivityReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.activities.Review(c.UserContext(), c.Params("id"), req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activity reviewed", result)
}

func (h *ActivityHandler) updateNotes(c *fiber.Ctx) error {
	var req dto.ActivityNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err)
	}

	activity, err := h.activities.UpdateNotes(c.UserContext(), c.Params("id"), req.Notes, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "notes updated", activity)
}
