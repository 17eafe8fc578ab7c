package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/repository"
)

// EvidenceStorage abstracts where evidence files end up.
type EvidenceStorage interface {
	UploadEvidence(ctx context.Context, activityID, name string, reader io.Reader) (string, error)
}

// EvidenceService attaches uploaded evidence files to pending activities.
type EvidenceService interface {
	Attach(ctx context.Context, studentID uint, activityID string, file *multipart.FileHeader) (dto.EvidenceResponse, error)
}

type evidenceService struct {
	storage EvidenceStorage
	repo    repository.ActivityRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewEvidenceService constructs the evidence service. storage may be nil when uploads are disabled.
func NewEvidenceService(storage EvidenceStorage, repo repository.ActivityRepository, maxSizeMB int, logger zerolog.Logger) EvidenceService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &evidenceService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "evidence_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/green-campus-api/internal/service/evidence"),
	}
}

func (s *evidenceService) Attach(ctx context.Context, studentID uint, activityID string, file *multipart.FileHeader) (dto.EvidenceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.attach", trace.WithAttributes(
		attribute.String("activity.id", activityID),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	if s.storage == nil {
		return dto.EvidenceResponse{}, s.fail(span, ErrEvidenceStorageUnavailable)
	}
	if file == nil {
		return dto.EvidenceResponse{}, s.fail(span, fmt.Errorf("%w: file is required", ErrInvalidInput))
	}
	if file.Size > s.maxSize {
		return dto.EvidenceResponse{}, s.fail(span, ErrEvidenceTooLarge)
	}

	activity, err := s.repo.GetByID(ctx, activityID)
	if err != nil {
		return dto.EvidenceResponse{}, s.fail(span, mapNotFound(err, ErrActivityNotFound))
	}
	if activity.StudentID != studentID {
		return dto.EvidenceResponse{}, s.fail(span, ErrActivityNotFound)
	}
	if activity.IsFinal() {
		return dto.EvidenceResponse{}, s.fail(span, ErrActivityFinalized)
	}

	handle, err := file.Open()
	if err != nil {
		return dto.EvidenceResponse{}, s.fail(span, err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return dto.EvidenceResponse{}, s.fail(span, err)
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.EvidenceResponse{}, s.fail(span, ErrEvidenceTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	span.SetAttributes(attribute.String("upload.detected_mime", detected))
	if !isAllowedEvidence(detected) {
		return dto.EvidenceResponse{}, s.fail(span, ErrEvidenceTypeNotAllowed)
	}

	checksum := sha256.Sum256(buf.Bytes())
	url, err := s.storage.UploadEvidence(ctx, activity.ID, sanitizeFileName(file.Filename), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return dto.EvidenceResponse{}, s.fail(span, err)
	}

	if err := s.repo.UpdatePending(ctx, activity.ID, map[string]interface{}{"evidence_url": url}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrActivityFinalized
		}
		return dto.EvidenceResponse{}, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("activity_id", activity.ID).Str("mime", detected).Int("bytes", buf.Len()).Msg("evidence attached")

	return dto.EvidenceResponse{
		ActivityID: activity.ID,
		URL:        url,
		MimeType:   detected,
		SizeBytes:  int64(buf.Len()),
		Checksum:   hex.EncodeToString(checksum[:]),
	}, nil
}

func (s *evidenceService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func isAllowedEvidence(mime string) bool {
	lower := strings.ToLower(mime)
	if i := strings.Index(lower, ";"); i >= 0 {
		lower = strings.TrimSpace(lower[:i])
	}
	return strings.HasPrefix(lower, "image/") || lower == "application/pdf"
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("evidence-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
