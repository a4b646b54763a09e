package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/errdefs"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/events"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/retry"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadRepository interface {
	CreateUpload(ctx context.Context, input *model.RepositoryCreateUploadInput) (*model.Upload, error)
	GetUpload(ctx context.Context, uploadId uuid.UUID) (*model.Upload, error)
	DeleteUpload(ctx context.Context, uploadId uuid.UUID) error
	FindExpired(ctx context.Context, now time.Time) ([]*model.Upload, error)
}

type EventProducer interface {
	Send(ctx context.Context, key string, message interface{}) error
}

type Cache interface {
	Get(ctx context.Context, uploadId uuid.UUID) (*model.Upload, bool)
	Set(ctx context.Context, upload *model.Upload)
	Delete(ctx context.Context, uploadId uuid.UUID)
}

type UploadService struct {
	uploadRepo UploadRepository
	store      storage.BlobStore
	producer   EventProducer
	cache      Cache
	uploadTTL  time.Duration
	breaker    *retry.CircuitBreaker
}

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

func NewUploadService(
	uploadRepo UploadRepository,
	store storage.BlobStore,
	producer EventProducer,
	cache Cache,
	uploadTTL time.Duration,
) *UploadService {
	return &UploadService{
		uploadRepo: uploadRepo,
		store:      store,
		producer:   producer,
		cache:      cache,
		uploadTTL:  uploadTTL,
		breaker:    retry.NewCircuitBreaker(5, 30*time.Second),
	}
}

// SaveUpload persists the blob and its metadata row, then publishes an
// image_received event. A publish failure is logged, never surfaced: the
// upload is durable by then and the oracle pipeline tolerates gaps.
func (s *UploadService) SaveUpload(ctx context.Context, input *model.SaveUploadInput, content io.Reader, size int64) (*model.Upload, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	extension := strings.ToLower(path.Ext(input.Filename))
	if extension == "" {
		return nil, fmt.Errorf("invalid file extension: %w", errdefs.ErrValidation)
	}
	if !allowedExtensions[extension] {
		return nil, fmt.Errorf("file extension %s not allowed: %w", extension, errdefs.ErrValidation)
	}

	deleteAfter := input.DeleteAfter
	if deleteAfter.IsZero() {
		deleteAfter = time.Now().Add(s.uploadTTL)
	}

	uploadInput := &model.RepositoryCreateUploadInput{
		Id:          id,
		Extension:   extension,
		DeviceId:    input.DeviceId,
		Filename:    &input.Filename,
		SizeBytes:   size,
		DeleteAfter: deleteAfter,
	}

	upload, err := s.uploadRepo.CreateUpload(ctx, uploadInput)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, upload.Key(), content, size); err != nil {
		if delErr := s.uploadRepo.DeleteUpload(ctx, upload.Id); delErr != nil {
			if logger, ok := logging.GetFromContext(ctx); ok {
				logger.Error(ctx, "failed to roll back upload row", zap.String("upload_id", upload.Id.String()), zap.Error(delErr))
			}
		}
		return nil, err
	}

	s.cache.Set(ctx, upload)

	event := &events.UploadEvent{
		UploadID:                upload.Id.String(),
		DeviceID:                upload.DeviceId,
		Filename:                input.Filename,
		SizeBytes:               size,
		EventType:               events.EventTypeReceived,
		ImageReceivingTimestamp: upload.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	s.publishBestEffort(ctx, upload.Id.String(), event)

	return upload, nil
}

func (s *UploadService) GetUploadMeta(ctx context.Context, uploadId uuid.UUID) (*model.Upload, error) {
	if upload, ok := s.cache.Get(ctx, uploadId); ok {
		return upload, nil
	}

	upload, err := s.uploadRepo.GetUpload(ctx, uploadId)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	s.cache.Set(ctx, upload)
	return upload, nil
}

// OpenContent streams the stored blob. The caller closes the reader.
func (s *UploadService) OpenContent(ctx context.Context, uploadId uuid.UUID) (*model.Upload, io.ReadCloser, error) {
	upload, err := s.GetUploadMeta(ctx, uploadId)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, upload.Key())
	if err != nil {
		return nil, nil, err
	}
	return upload, rc, nil
}

// DownloadURL returns a presigned URL when the active store supports it.
// The second return value is false for stores that only stream.
func (s *UploadService) DownloadURL(ctx context.Context, uploadId uuid.UUID) (string, bool, error) {
	presigner, ok := s.store.(storage.URLPresigner)
	if !ok {
		return "", false, nil
	}
	upload, err := s.GetUploadMeta(ctx, uploadId)
	if err != nil {
		return "", false, err
	}
	url, err := presigner.PresignDownload(ctx, upload.Key())
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

// DeleteUpload removes the blob and metadata row and publishes an
// image_deleted event.
func (s *UploadService) DeleteUpload(ctx context.Context, uploadId uuid.UUID) error {
	upload, err := s.uploadRepo.GetUpload(ctx, uploadId)
	if err != nil {
		return fmt.Errorf("failed to get upload: %w", err)
	}
	return s.deleteUpload(ctx, upload)
}

func (s *UploadService) deleteUpload(ctx context.Context, upload *model.Upload) error {
	if err := s.store.Delete(ctx, upload.Key()); err != nil && !isNotFound(err) {
		return err
	}
	if err := s.uploadRepo.DeleteUpload(ctx, upload.Id); err != nil {
		return err
	}
	s.cache.Delete(ctx, upload.Id)

	event := &events.UploadEvent{
		UploadID:             upload.Id.String(),
		DeviceID:             upload.DeviceId,
		EventType:            events.EventTypeDeleted,
		ImageStoreDeleteTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.publishBestEffort(ctx, upload.Id.String(), event)
	return nil
}

// DeleteExpired removes every upload whose delete_after has passed and
// reports how many were deleted.
func (s *UploadService) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.uploadRepo.FindExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired uploads: %w", err)
	}

	deleted := 0
	for _, upload := range expired {
		if err := s.deleteUpload(ctx, upload); err != nil {
			if logger, ok := logging.GetFromContext(ctx); ok {
				logger.Error(ctx, "failed to delete expired upload",
					zap.String("upload_id", upload.Id.String()),
					zap.Error(err),
				)
			}
			continue
		}
		deleted++
	}
	return deleted, nil
}

// PublishDocument normalizes a raw scoring event and publishes it. Unlike
// upload lifecycle events the caller needs to know whether delivery failed.
func (s *UploadService) PublishDocument(ctx context.Context, doc events.Document) error {
	if err := doc.Normalize(time.Now()); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
	}
	_, err := retry.WithCircuitBreaker(ctx, s.breaker, 3, 200*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, s.producer.Send(ctx, "", doc)
	})
	return err
}

func (s *UploadService) publishBestEffort(ctx context.Context, key string, message interface{}) {
	_, err := retry.WithCircuitBreaker(ctx, s.breaker, 3, 200*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, s.producer.Send(ctx, key, message)
	})
	if err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "failed to publish oracle event", zap.String("key", key), zap.Error(err))
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, errdefs.ErrNotFound)
}
