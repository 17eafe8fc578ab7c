package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/geotrack"
	"github.com/noah-isme/green-campus-api/internal/models"
	"github.com/noah-isme/green-campus-api/internal/verification"
)

func newVerificationFixture(t *testing.T) (VerificationService, *ledgerFixture) {
	t.Helper()
	f := newLedgerFixture(t)
	engine := verification.NewEngine(config.DefaultVerificationThresholds())
	return NewVerificationService(f.store, engine, testLogger()), f
}

func TestAnalyzeTrackSummarizesPoints(t *testing.T) {
	svc, _ := newVerificationFixture(t)

	summary, err := svc.AnalyzeTrack(context.Background(), northboundTrack())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Points)
	require.Equal(t, int64(1200), summary.DurationSeconds)
	require.InDelta(t, 4.003, summary.DistanceKm, 0.01)

	_, err = svc.AnalyzeTrack(context.Background(), northboundTrack()[:1])
	require.ErrorIs(t, err, geotrack.ErrInsufficientData)
}

func TestVerifyCyclingStoresTrackAndLogs(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V100")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeCycling})

	result, err := svc.Verify(context.Background(), activity.ID, northboundTrack())
	require.NoError(t, err)
	require.Equal(t, string(models.VerificationPassed), result.Result)
	require.Equal(t, 100.0, result.Score)
	require.Len(t, result.Checks, 4)
	require.NotNil(t, result.Track)

	track, err := f.store.Repos().Verification.GetTrack(context.Background(), activity.ID)
	require.NoError(t, err)
	require.True(t, track.IsVerified)
	require.NotNil(t, track.VerificationScore)
	require.Equal(t, 100.0, *track.VerificationScore)
	require.Len(t, track.Points, 3)

	logs, err := svc.Logs(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	require.Equal(t, "cycling_distance", logs[0].VerificationType)
	require.Equal(t, "gps", logs[0].Details["source"])

	stored, err := f.store.Repos().Activities.GetByID(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPending, stored.Status)
}

func TestVerifyReusesStoredTrack(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V200")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeCycling})

	_, err := svc.Verify(context.Background(), activity.ID, northboundTrack())
	require.NoError(t, err)

	again, err := svc.Verify(context.Background(), activity.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, again.Track)
	require.Equal(t, "gps", again.Checks[0].Source)

	logs, err := svc.Logs(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, logs, 8)

	var tracks int64
	require.NoError(t, f.db.Model(&models.GPSTrackingData{}).Where("activity_id = ?", activity.ID).Count(&tracks).Error)
	require.Equal(t, int64(1), tracks)
}

func TestVerifyDeclaredTooFastFailsWithoutChangingStatus(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V300")
	activity := seedActivity(t, f.db, models.Activity{
		StudentID:       student.ID,
		ActivityType:    models.ActivityTypeCycling,
		DistanceKm:      floatRef(40),
		DurationMinutes: intRef(30),
	})

	result, err := svc.Verify(context.Background(), activity.ID, nil)
	require.NoError(t, err)
	require.Equal(t, string(models.VerificationFailed), result.Result)
	require.Nil(t, result.Track)
	require.Equal(t, "declared", result.Checks[2].Source)
	require.Equal(t, string(models.VerificationFailed), result.Checks[2].Result)
}

func TestVerifyManualTypesChecksDescriptiveFields(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V400")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeWorkshops, Title: "Composting 101"})

	result, err := svc.Verify(context.Background(), activity.ID, nil)
	require.NoError(t, err)
	require.Len(t, result.Checks, 2)
	require.Equal(t, string(models.VerificationFailed), result.Result)
	require.Equal(t, 50.0, result.Score)
}

func TestVerifyRejectsFinalizedAndMissingActivities(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V500")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeEnergy, Status: models.ActivityStatusApproved})

	_, err := svc.Verify(context.Background(), activity.ID, nil)
	require.ErrorIs(t, err, ErrActivityFinalized)

	_, err = svc.Verify(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrActivityNotFound)

	_, err = svc.Logs(context.Background(), "missing")
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestVerifyStopsWhenReviewFinalizesMidway(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V550")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeCycling})

	// Approve the activity right after Verify's first read of it.
	var armed atomic.Bool
	armed.Store(true)
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:approve_midway", func(tx *gorm.DB) {
		if tx.Statement.Table != "activities" || !armed.CompareAndSwap(true, false) {
			return
		}
		require.NoError(t, f.db.Exec("UPDATE activities SET status = ? WHERE id = ?", string(models.ActivityStatusApproved), activity.ID).Error)
	}))

	_, err := svc.Verify(context.Background(), activity.ID, northboundTrack())
	require.ErrorIs(t, err, ErrActivityFinalized)

	_, err = f.store.Repos().Verification.GetTrack(context.Background(), activity.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	logs, err := svc.Logs(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestStoredTrackKeepsFractionalDuration(t *testing.T) {
	summary := geotrack.Summary{DistanceKm: 40, Duration: 3*time.Hour + 500*time.Millisecond, Points: 2}

	record := newTrackRecord("a-1", northboundTrack()[:2], summary)
	require.Equal(t, int64(10801), record.DurationSeconds)

	restored := summaryFromTrack(*record)
	require.Greater(t, restored.Duration, 3*time.Hour)
}

func TestVerifyRejectsInvalidTrack(t *testing.T) {
	svc, f := newVerificationFixture(t)
	student := seedStudent(t, f.db, "V600")
	activity := seedActivity(t, f.db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeCycling})

	points := northboundTrack()
	points[2].Timestamp = points[1].Timestamp.Add(-time.Minute)

	_, err := svc.Verify(context.Background(), activity.ID, points)
	require.ErrorIs(t, err, geotrack.ErrInsufficientData)

	logs, err := svc.Logs(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Empty(t, logs)
}
