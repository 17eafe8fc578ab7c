package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores activity evidence in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// UploadEvidence stores the file under the activity's folder and returns its secure URL.
func (s *Service) UploadEvidence(ctx context.Context, activityID, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       EvidenceFolder(s.folder, activityID),
		PublicID:     PublicID(name, time.Now()),
		ResourceType: "auto",
		Tags:         []string{"evidence", "activity-" + activityID},
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected evidence: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("activity_id", activityID).Msg("evidence uploaded to cloudinary")

	return result.SecureURL, nil
}

// EvidenceFolder returns the folder holding an activity's evidence.
func EvidenceFolder(base, activityID string) string {
	return path.Join(strings.Trim(base, "/"), "activities", activityID)
}

// PublicID derives a stable, URL-safe asset name from the original file name.
func PublicID(name string, at time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "evidence"
	}

	return fmt.Sprintf("%s-%d", strings.ToLower(base), at.Unix())
}
