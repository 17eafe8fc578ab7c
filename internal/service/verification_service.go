package service

import (
	"context"
	"errors"
	"math"
	"time"

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
	"github.com/noah-isme/green-campus-api/internal/observability"
	"github.com/noah-isme/green-campus-api/internal/repository"
	"github.com/noah-isme/green-campus-api/internal/verification"
)

// VerificationService runs the verification engine against stored activities and records the outcome.
type VerificationService interface {
	AnalyzeTrack(ctx context.Context, points []geotrack.Point) (dto.TrackSummaryResponse, error)
	Verify(ctx context.Context, activityID string, points []geotrack.Point) (dto.VerificationResponse, error)
	Logs(ctx context.Context, activityID string) ([]dto.VerificationLogResponse, error)
}

type verificationService struct {
	store  repository.Store
	engine *verification.Engine
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewVerificationService constructs the verification orchestrator.
func NewVerificationService(store repository.Store, engine *verification.Engine, logger zerolog.Logger) VerificationService {
	return &verificationService{
		store:  store,
		engine: engine,
		logger: logger.With().Str("component", "verification_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/green-campus-api/internal/service/verification"),
	}
}

func (s *verificationService) AnalyzeTrack(ctx context.Context, points []geotrack.Point) (dto.TrackSummaryResponse, error) {
	_, span := s.tracer.Start(ctx, "verification.analyze_track", trace.WithAttributes(attribute.Int("track.points", len(points))))
	defer span.End()

	summary, err := geotrack.Analyze(points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insufficient data")
		return dto.TrackSummaryResponse{}, err
	}

	return dto.NewTrackSummaryResponse(summary), nil
}

// Verify evaluates a pending activity. A supplied track replaces any stored one;
// otherwise a previously stored track is reused.
func (s *verificationService) Verify(ctx context.Context, activityID string, points []geotrack.Point) (dto.VerificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "verification.verify", trace.WithAttributes(attribute.String("activity.id", activityID)))
	defer span.End()

	repos := s.store.Repos()
	activity, err := repos.Activities.GetByID(ctx, activityID)
	if err != nil {
		err = mapNotFound(err, ErrActivityNotFound)
		span.RecordError(err)
		return dto.VerificationResponse{}, err
	}
	if activity.IsFinal() {
		span.RecordError(ErrActivityFinalized)
		return dto.VerificationResponse{}, ErrActivityFinalized
	}

	var (
		summary *geotrack.Summary
		track   *models.GPSTrackingData
	)
	if len(points) > 0 {
		analyzed, err := geotrack.Analyze(points)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insufficient data")
			return dto.VerificationResponse{}, err
		}
		summary = &analyzed
		track = newTrackRecord(activity.ID, points, analyzed)
	} else {
		stored, err := repos.Verification.GetTrack(ctx, activity.ID)
		switch {
		case err == nil:
			restored := summaryFromTrack(stored)
			summary = &restored
			track = &stored
		case !errors.Is(err, gorm.ErrRecordNotFound):
			span.RecordError(err)
			return dto.VerificationResponse{}, err
		}
	}

	verdict, err := s.engine.Verify(verification.Evidence{
		ActivityType:    activity.ActivityType,
		Title:           activity.Title,
		Description:     activity.Description,
		DistanceKm:      activity.DistanceKm,
		DurationMinutes: activity.DurationMinutes,
		EnergySavedKwh:  activity.EnergySavedKwh,
		Track:           summary,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown activity type")
		return dto.VerificationResponse{}, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Repositories) error {
		// A review may have finalized the activity while the engine ran.
		current, err := tx.Activities.GetForUpdate(ctx, activity.ID)
		if err != nil {
			return mapNotFound(err, ErrActivityNotFound)
		}
		if current.IsFinal() {
			return ErrActivityFinalized
		}
		if track != nil {
			score := verdict.Score
			track.VerificationScore = &score
			track.IsVerified = verdict.Passed()
			if err := tx.Verification.SaveTrack(ctx, track); err != nil {
				return err
			}
		}
		return tx.Verification.AppendLogs(ctx, logsForVerdict(activity.ID, verdict))
	})
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, ErrActivityFinalized) {
			span.SetStatus(codes.Error, "persistence failed")
		}
		return dto.VerificationResponse{}, err
	}

	observability.Verifications().WithLabelValues(string(activity.ActivityType), string(verdict.Result)).Inc()
	span.SetAttributes(attribute.String("verification.result", string(verdict.Result)), attribute.Float64("verification.score", verdict.Score))
	span.SetStatus(codes.Ok, string(verdict.Result))

	s.logger.Info().
		Str("activity_id", activity.ID).
		Str("result", string(verdict.Result)).
		Float64("score", verdict.Score).
		Int("checks", len(verdict.Checks)).
		Msg("activity verified")

	return dto.NewVerificationResponse(activity.ID, verdict, summary), nil
}

func (s *verificationService) Logs(ctx context.Context, activityID string) ([]dto.VerificationLogResponse, error) {
	repos := s.store.Repos()
	if _, err := repos.Activities.GetByID(ctx, activityID); err != nil {
		return nil, mapNotFound(err, ErrActivityNotFound)
	}

	entries, err := repos.Verification.ListLogs(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return dto.NewVerificationLogResponses(entries), nil
}

func logsForVerdict(activityID string, verdict verification.Verdict) []models.VerificationLog {
	entries := make([]models.VerificationLog, 0, len(verdict.Checks))
	for _, check := range verdict.Checks {
		score := check.Score()
		entries = append(entries, models.VerificationLog{
			ActivityID:       activityID,
			VerificationType: check.Name,
			Result:           check.Result,
			Details:          datatypes.JSONMap(check.Details()),
			Score:            &score,
		})
	}
	return entries
}

func newTrackRecord(activityID string, points []geotrack.Point, summary geotrack.Summary) *models.GPSTrackingData {
	stored := make([]models.TrackPoint, 0, len(points))
	for _, p := range points {
		stored = append(stored, models.TrackPoint{Latitude: p.Latitude, Longitude: p.Longitude, Timestamp: p.Timestamp})
	}

	return &models.GPSTrackingData{
		ActivityID:      activityID,
		Points:          datatypes.JSONSlice[models.TrackPoint](stored),
		TotalDistanceKm: summary.DistanceKm,
		AverageSpeedKmh: summary.AverageSpeedKmh,
		MaxSpeedKmh:     summary.MaxSpeedKmh,
		DurationSeconds: int64(math.Round(summary.Duration.Seconds())),
	}
}

func summaryFromTrack(track models.GPSTrackingData) geotrack.Summary {
	return geotrack.Summary{
		DistanceKm:      track.TotalDistanceKm,
		Duration:        time.Duration(track.DurationSeconds) * time.Second,
		AverageSpeedKmh: track.AverageSpeedKmh,
		MaxSpeedKmh:     track.MaxSpeedKmh,
		Points:          len(track.Points),
	}
}
