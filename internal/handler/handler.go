package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/ctxdata"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/events"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadService interface {
	SaveUpload(ctx context.Context, input *model.SaveUploadInput, content io.Reader, size int64) (*model.Upload, error)
	GetUploadMeta(ctx context.Context, uploadId uuid.UUID) (*model.Upload, error)
	OpenContent(ctx context.Context, uploadId uuid.UUID) (*model.Upload, io.ReadCloser, error)
	DownloadURL(ctx context.Context, uploadId uuid.UUID) (string, bool, error)
	DeleteUpload(ctx context.Context, uploadId uuid.UUID) error
	PublishDocument(ctx context.Context, doc events.Document) error
}

type UploadHandler struct {
	svc            UploadService
	maxUploadBytes int64
}

func NewUploadHandler(svc UploadService, maxUploadBytes int64) *UploadHandler {
	return &UploadHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/uploads", h.SaveUpload)
	r.Get("/uploads/{id}/meta", h.GetUploadMeta)
	r.Get("/uploads/{id}", h.Download)
	r.Delete("/uploads/{id}", h.DeleteUpload)
	r.Post("/events", h.PublishEvent)
}

func (h *UploadHandler) SaveUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		// A body the client got wrong is a client error, not a server one.
		statusCode := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			statusCode = http.StatusRequestEntityTooLarge
		}
		writeErrorJSON(w, statusCode, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	input := &model.SaveUploadInput{
		DeviceId: r.FormValue("device_id"),
		Filename: header.Filename,
	}
	if input.DeviceId == "" {
		if deviceID, ok := ctxdata.GetDeviceID(ctx); ok {
			input.DeviceId = deviceID
		}
	}

	upload, err := h.svc.SaveUpload(ctx, input, file, header.Size)
	if err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "failed to save upload", zap.String("filename", header.Filename), zap.Error(err))
		}
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}

	writeJSON(w, http.StatusCreated, upload)
}

func (h *UploadHandler) GetUploadMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseIDParam(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	upload, err := h.svc.GetUploadMeta(ctx, id)
	if err != nil {
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}

	writeJSON(w, http.StatusOK, upload)
}

func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseIDParam(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	url, presigned, err := h.svc.DownloadURL(ctx, id)
	if err != nil {
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}
	if presigned {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	upload, rc, err := h.svc.OpenContent(ctx, id)
	if err != nil {
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(upload.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if upload.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(upload.SizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "failed to stream upload content", zap.String("upload_id", id.String()), zap.Error(err))
		}
	}
}

func (h *UploadHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseIDParam(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.DeleteUpload(ctx, id); err != nil {
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UploadHandler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var doc events.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid event body")
		return
	}

	start := time.Now()
	if err := h.svc.PublishDocument(ctx, doc); err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "failed to publish event", zap.Error(err))
		}
		statusCode := mapErr(err)
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}
	if logger, ok := logging.GetFromContext(ctx); ok {
		logger.Info(ctx, "event published", zap.Duration("duration", time.Since(start)))
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}
