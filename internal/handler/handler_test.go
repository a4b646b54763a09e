package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/errdefs"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/events"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/middleware"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUploadService is a testify mock for UploadService.
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) SaveUpload(ctx context.Context, input *model.SaveUploadInput, content io.Reader, size int64) (*model.Upload, error) {
	args := m.Called(ctx, input, content, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockUploadService) GetUploadMeta(ctx context.Context, uploadId uuid.UUID) (*model.Upload, error) {
	args := m.Called(ctx, uploadId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockUploadService) OpenContent(ctx context.Context, uploadId uuid.UUID) (*model.Upload, io.ReadCloser, error) {
	args := m.Called(ctx, uploadId)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Upload), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockUploadService) DownloadURL(ctx context.Context, uploadId uuid.UUID) (string, bool, error) {
	args := m.Called(ctx, uploadId)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockUploadService) DeleteUpload(ctx context.Context, uploadId uuid.UUID) error {
	args := m.Called(ctx, uploadId)
	return args.Error(0)
}

func (m *MockUploadService) PublishDocument(ctx context.Context, doc events.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func newTestRouter(svc UploadService) chi.Router {
	r := chi.NewRouter()
	NewUploadHandler(svc, 10<<20).RegisterRoutes(r)
	return r
}

func multipartBody(t *testing.T, filename, deviceID, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if deviceID != "" {
		require.NoError(t, w.WriteField("device_id", deviceID))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"BadRequest", ErrBadRequest, http.StatusBadRequest},
		{"Validation", errdefs.ErrValidation, http.StatusBadRequest},
		{"NotFound", errdefs.ErrNotFound, http.StatusNotFound},
		{"AlreadyExists", errdefs.ErrAlreadyExists, http.StatusConflict},
		{"PermissionDenied", errdefs.ErrPermissionDenied, http.StatusForbidden},
		{"WrappedNotFound", errors.Join(errors.New("failed to get upload"), errdefs.ErrNotFound), http.StatusNotFound},
		{"TooLarge", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"UnknownError", errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mapErr(tc.err))
		})
	}
}

func TestSaveUpload_Created(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	filename := "snapshot.jpg"
	stored := &model.Upload{Id: id, Extension: ".jpg", DeviceId: "camera-01", Filename: &filename, SizeBytes: 7}

	svc.On("SaveUpload", mock.Anything, mock.MatchedBy(func(input *model.SaveUploadInput) bool {
		return input.Filename == "snapshot.jpg" && input.DeviceId == "camera-01"
	}), mock.Anything, int64(7)).Return(stored, nil)

	body, contentType := multipartBody(t, "snapshot.jpg", "camera-01", "imgdata")
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got model.Upload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.Id)
	svc.AssertExpectations(t)
}

func TestSaveUpload_MissingFilePart(t *testing.T) {
	svc := new(MockUploadService)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("device_id", "camera-01"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SaveUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveUpload_NonMultipartBody(t *testing.T) {
	svc := new(MockUploadService)

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"x":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SaveUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveUpload_DeviceIDFromHeader(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	filename := "snapshot.jpg"
	stored := &model.Upload{Id: id, Extension: ".jpg", DeviceId: "camera-42", Filename: &filename}

	svc.On("SaveUpload", mock.Anything, mock.MatchedBy(func(input *model.SaveUploadInput) bool {
		return input.DeviceId == "camera-42"
	}), mock.Anything, mock.Anything).Return(stored, nil)

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logging.New(zap.NewNop())))
	NewUploadHandler(svc, 10<<20).RegisterRoutes(r)

	body, contentType := multipartBody(t, "snapshot.jpg", "", "imgdata")
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Device-Id", "camera-42")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestSaveUpload_ValidationError(t *testing.T) {
	svc := new(MockUploadService)
	svc.On("SaveUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errdefs.ErrValidation)

	body, contentType := multipartBody(t, "payload.exe", "", "data")
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUploadMeta_OK(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	filename := "snapshot.jpg"
	stored := &model.Upload{Id: id, Extension: ".jpg", Filename: &filename}
	svc.On("GetUploadMeta", mock.Anything, id).Return(stored, nil)

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+id.String()+"/meta", nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got model.Upload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.Id)
}

func TestGetUploadMeta_NotFound(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	svc.On("GetUploadMeta", mock.Anything, id).Return(nil, errdefs.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+id.String()+"/meta", nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUploadMeta_InvalidID(t *testing.T) {
	svc := new(MockUploadService)

	req := httptest.NewRequest(http.MethodGet, "/uploads/not-a-uuid/meta", nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "GetUploadMeta", mock.Anything, mock.Anything)
}

func TestDownload_StreamsLocalContent(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	stored := &model.Upload{Id: id, Extension: ".jpg", SizeBytes: 7}

	svc.On("DownloadURL", mock.Anything, id).Return("", false, nil)
	svc.On("OpenContent", mock.Anything, id).
		Return(stored, io.NopCloser(strings.NewReader("imgdata")), nil)

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "imgdata", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
}

func TestDownload_RedirectsToPresignedURL(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()

	svc.On("DownloadURL", mock.Anything, id).
		Return("http://minio:9000/ckn-uploads/"+id.String()+".jpg", true, nil)

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), id.String())
	svc.AssertNotCalled(t, "OpenContent", mock.Anything, mock.Anything)
}

func TestDeleteUpload_NoContent(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	svc.On("DeleteUpload", mock.Anything, id).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/uploads/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteUpload_NotFound(t *testing.T) {
	svc := new(MockUploadService)
	id := uuid.New()
	svc.On("DeleteUpload", mock.Anything, id).Return(errdefs.ErrNotFound)

	req := httptest.NewRequest(http.MethodDelete, "/uploads/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishEvent_Accepted(t *testing.T) {
	svc := new(MockUploadService)
	svc.On("PublishDocument", mock.Anything, mock.MatchedBy(func(doc events.Document) bool {
		return doc["model_id"] == "resnet50"
	})).Return(nil)

	body := strings.NewReader(`{"model_id":"resnet50","flattened_scores":[{"label":"animal"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/events", body)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "published", resp["status"])
	svc.AssertExpectations(t)
}

func TestPublishEvent_InvalidBody(t *testing.T) {
	svc := new(MockUploadService)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "PublishDocument", mock.Anything, mock.Anything)
}

func TestPublishEvent_BrokerFailure(t *testing.T) {
	svc := new(MockUploadService)
	svc.On("PublishDocument", mock.Anything, mock.Anything).Return(errors.New("broker gone"))

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"model_id":"resnet50"}`))
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
