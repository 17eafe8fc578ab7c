package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeEvidenceStorage struct {
	activityID string
	name       string
	body       []byte
	err        error
}

func (f *fakeEvidenceStorage) UploadEvidence(_ context.Context, activityID, name string, reader io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.activityID, f.name, f.body = activityID, name, body
	return "https://cdn.campus.test/" + activityID + "/" + name, nil
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestAttachEvidenceStoresURL(t *testing.T) {
	db, store := setupStore(t)
	storage := &fakeEvidenceStorage{}
	svc := NewEvidenceService(storage, store.Repos().Activities, 1, testLogger())

	student := seedStudent(t, db, "E100")
	activity := seedActivity(t, db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeWorkshops})

	resp, err := svc.Attach(context.Background(), student.ID, activity.ID, fileHeader(t, "Certificate Scan.PNG", pngHeader))
	require.NoError(t, err)
	require.Equal(t, "image/png", resp.MimeType)
	require.Equal(t, int64(len(pngHeader)), resp.SizeBytes)
	require.Len(t, resp.Checksum, 64)
	require.Equal(t, "certificate-scan.png", storage.name)
	require.Equal(t, pngHeader, storage.body)

	stored, err := store.Repos().Activities.GetByID(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Equal(t, resp.URL, stored.EvidenceURL)
}

func TestAttachEvidenceRejections(t *testing.T) {
	db, store := setupStore(t)
	storage := &fakeEvidenceStorage{}
	svc := NewEvidenceService(storage, store.Repos().Activities, 1, testLogger())
	ctx := context.Background()

	student := seedStudent(t, db, "E200")
	pending := seedActivity(t, db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeWorkshops})
	approved := seedActivity(t, db, models.Activity{StudentID: student.ID, ActivityType: models.ActivityTypeWorkshops, Status: models.ActivityStatusApproved})

	_, err := svc.Attach(ctx, student.ID, pending.ID, fileHeader(t, "notes.txt", []byte(strings.Repeat("plain text ", 20))))
	require.ErrorIs(t, err, ErrEvidenceTypeNotAllowed)

	_, err = svc.Attach(ctx, student.ID, pending.ID, &multipart.FileHeader{Filename: "huge.png", Size: 2 << 20})
	require.ErrorIs(t, err, ErrEvidenceTooLarge)

	_, err = svc.Attach(ctx, student.ID, approved.ID, fileHeader(t, "late.png", pngHeader))
	require.ErrorIs(t, err, ErrActivityFinalized)

	_, err = svc.Attach(ctx, student.ID+1, pending.ID, fileHeader(t, "other.png", pngHeader))
	require.ErrorIs(t, err, ErrActivityNotFound)

	storage.err = errors.New("upstream unavailable")
	_, err = svc.Attach(ctx, student.ID, pending.ID, fileHeader(t, "retry.png", pngHeader))
	require.EqualError(t, err, "upstream unavailable")

	disabled := NewEvidenceService(nil, store.Repos().Activities, 1, testLogger())
	_, err = disabled.Attach(ctx, student.ID, pending.ID, fileHeader(t, "x.png", pngHeader))
	require.ErrorIs(t, err, ErrEvidenceStorageUnavailable)

	stored, err := store.Repos().Activities.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Empty(t, stored.EvidenceURL)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "bike_ride-1.jpg", sanitizeFileName("Bike_Ride 1.JPG"))
	require.Equal(t, "receipt.bin", sanitizeFileName("receipt"))
	require.True(t, strings.HasPrefix(sanitizeFileName("???.pdf"), "evidence-"))
}
