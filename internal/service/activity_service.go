package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

const manualReviewCheck = "manual_review"

// ActivityService handles submission and review of sustainability activities.
type ActivityService interface {
	Submit(ctx context.Context, studentID uint, req dto.ActivitySubmitRequest) (dto.ActivityResponse, error)
	Get(ctx context.Context, id string, viewer Actor) (dto.ActivityResponse, error)
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	Review(ctx context.Context, id string, req dto.ActivityReviewRequest, reviewer Actor) (dto.ActivityReviewResponse, error)
	UpdateNotes(ctx context.Context, id, notes string, actor Actor) (dto.ActivityResponse, error)
}

type activityService struct {
	store     repository.Store
	ledger    LedgerService
	audit     AuditRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewActivityService constructs the activity workflow service.
func NewActivityService(store repository.Store, ledger LedgerService, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		store:     store,
		ledger:    ledger,
		audit:     audit,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "activity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/green-campus-api/internal/service/activity"),
		now:       time.Now,
	}
}

func (s *activityService) Submit(ctx context.Context, studentID uint, req dto.ActivitySubmitRequest) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityResponse{}, err
	}

	kind, err := models.ParseActivityType(req.ActivityType)
	if err != nil {
		return dto.ActivityResponse{}, err
	}

	title := s.clean(req.Title)
	if title == "" {
		return dto.ActivityResponse{}, fmt.Errorf("%w: title is empty after sanitization", ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "activities.submit", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.String("activity.type", string(kind)),
	))
	defer span.End()

	var (
		summary *geotrack.Summary
		points  []geotrack.Point
	)
	if len(req.Track) > 0 {
		points = dto.ToPoints(req.Track)
		analyzed, err := geotrack.Analyze(points)
		if err != nil {
			span.RecordError(err)
			return dto.ActivityResponse{}, err
		}
		summary = &analyzed
	}

	activity := models.Activity{
		StudentID:       studentID,
		ActivityType:    kind,
		Title:           title,
		Description:     s.clean(req.Description),
		EvidenceNote:    s.clean(req.EvidenceNote),
		Location:        s.clean(req.Location),
		StartLatitude:   req.StartLatitude,
		StartLongitude:  req.StartLongitude,
		EndLatitude:     req.EndLatitude,
		EndLongitude:    req.EndLongitude,
		DistanceKm:      req.DistanceKm,
		DurationMinutes: req.DurationMinutes,
		EnergySavedKwh:  req.EnergySavedKwh,
		Status:          models.ActivityStatusPending,
		ActivityDate:    s.now(),
	}
	if req.ActivityDate != nil {
		activity.ActivityDate = *req.ActivityDate
	}
	if summary != nil && activity.DistanceKm == nil {
		distance := math.Round(summary.DistanceKm*100) / 100
		activity.DistanceKm = &distance
	}

	err = s.store.Transaction(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Students.GetByID(ctx, studentID); err != nil {
			return mapNotFound(err, ErrStudentNotFound)
		}
		if err := repos.Activities.Create(ctx, &activity); err != nil {
			return err
		}
		if summary != nil {
			return repos.Verification.SaveTrack(ctx, newTrackRecord(activity.ID, points, *summary))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return dto.ActivityResponse{}, err
	}

	s.logger.Info().
		Str("activity_id", activity.ID).
		Uint("student_id", studentID).
		Str("type", string(kind)).
		Bool("gps_track", summary != nil).
		Msg("activity submitted")

	return dto.NewActivityResponse(activity), nil
}

// Get returns the activity. Students only see their own.
func (s *activityService) Get(ctx context.Context, id string, viewer Actor) (dto.ActivityResponse, error) {
	activity, err := s.store.Repos().Activities.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, mapNotFound(err, ErrActivityNotFound)
	}
	if normalizeRole(viewer.Role) == "student" && activity.StudentID != viewer.ID {
		return dto.ActivityResponse{}, ErrActivityNotFound
	}
	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	filter := repository.ActivityFilter{Page: req.Page, PageSize: req.PageSize, StudentID: req.StudentID}

	if req.Status != "" {
		status, err := models.ParseActivityStatus(req.Status)
		if err != nil {
			return dto.ActivityListResponse{}, err
		}
		filter.Status = &status
	}
	if req.ActivityType != "" {
		kind, err := models.ParseActivityType(req.ActivityType)
		if err != nil {
			return dto.ActivityListResponse{}, err
		}
		filter.ActivityType = &kind
	}

	activities, total, err := s.store.Repos().Activities.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, dto.NewActivityResponse(activity))
	}

	return dto.ActivityListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

// Review finalizes a pending activity and, on approval, awards its credits.
func (s *activityService) Review(ctx context.Context, id string, req dto.ActivityReviewRequest, reviewer Actor) (dto.ActivityReviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityReviewResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "activities.review", trace.WithAttributes(
		attribute.String("activity.id", id),
		attribute.String("review.decision", req.Decision),
	))
	defer span.End()

	activity, err := s.store.Repos().Activities.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityReviewResponse{}, s.fail(span, mapNotFound(err, ErrActivityNotFound))
	}

	decision, err := models.ParseActivityStatus(req.Decision)
	if err != nil {
		return dto.ActivityReviewResponse{}, s.fail(span, err)
	}
	if !activity.CanTransitionTo(decision) {
		return dto.ActivityReviewResponse{}, s.fail(span, ErrActivityFinalized)
	}

	// Reject approvals that could never be credited before the status becomes final.
	if decision == models.ActivityStatusApproved {
		if _, err := s.ledger.Quote(ctx, activity); err != nil {
			return dto.ActivityReviewResponse{}, s.fail(span, err)
		}
	}

	now := s.now()
	reviewerID := reviewer.ID
	activity.Status = decision
	activity.VerifiedBy = &reviewerID
	activity.ReviewedAt = &now
	activity.VerificationNotes = s.clean(req.Notes)

	err = s.store.Transaction(ctx, func(repos repository.Repositories) error {
		if err := repos.Activities.UpdateReview(ctx, &activity); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActivityFinalized
			}
			return err
		}

		if activity.ActivityType.RequiresManualReview() {
			if err := repos.Verification.AppendLogs(ctx, []models.VerificationLog{manualReviewLog(activity, reviewer)}); err != nil {
				return err
			}
		}

		audit, err := buildAuditLog(AuditEntry{
			Actor:      reviewer,
			Action:     "activity.review",
			EntityType: "activity",
			EntityID:   activity.ID,
			Metadata:   map[string]interface{}{"decision": string(decision), "activity_type": string(activity.ActivityType)},
		})
		if err != nil {
			return err
		}
		return repos.Audit.Create(ctx, &audit)
	})
	if err != nil {
		return dto.ActivityReviewResponse{}, s.fail(span, err)
	}

	response := dto.ActivityReviewResponse{Activity: dto.NewActivityResponse(activity)}
	if decision == models.ActivityStatusApproved {
		result, err := s.ledger.Award(ctx, activity.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("activity_id", activity.ID).Msg("activity approved but award failed")
			return response, s.fail(span, fmt.Errorf("activity approved but award failed: %w", err))
		}
		response.Award = &result.Transaction
	}

	span.SetStatus(codes.Ok, string(decision))
	s.logger.Info().
		Str("activity_id", activity.ID).
		Uint("reviewer_id", reviewer.ID).
		Str("decision", string(decision)).
		Msg("activity reviewed")

	return response, nil
}

// UpdateNotes is the only change allowed once an activity is final.
func (s *activityService) UpdateNotes(ctx context.Context, id, notes string, actor Actor) (dto.ActivityResponse, error) {
	repo := s.store.Repos().Activities
	cleaned := s.clean(notes)

	if err := repo.UpdateNotes(ctx, id, cleaned); err != nil {
		return dto.ActivityResponse{}, mapNotFound(err, ErrActivityNotFound)
	}

	activity, err := repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, mapNotFound(err, ErrActivityNotFound)
	}

	if s.audit != nil {
		if _, err := s.audit.Record(ctx, AuditEntry{
			Actor:      actor,
			Action:     "activity.notes",
			EntityType: "activity",
			EntityID:   activity.ID,
		}); err != nil {
			s.logger.Warn().Err(err).Str("activity_id", id).Msg("failed to audit notes update")
		}
	}

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *activityService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func manualReviewLog(activity models.Activity, reviewer Actor) models.VerificationLog {
	result := models.VerificationFailed
	score := 0.0
	if activity.Status == models.ActivityStatusApproved {
		result = models.VerificationPassed
		score = 100
	}

	return models.VerificationLog{
		ActivityID:       activity.ID,
		VerificationType: manualReviewCheck,
		Result:           result,
		Score:            &score,
		Details: datatypes.JSONMap{
			"check":       manualReviewCheck,
			"outcome":     string(result),
			"decision":    string(activity.Status),
			"reviewer_id": reviewer.ID,
			"notes":       activity.VerificationNotes,
		},
	}
}
