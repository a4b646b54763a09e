package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/errdefs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var ErrBadRequest = errors.New("bad request")

func mapErr(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, errdefs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errdefs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errdefs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write(data)
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp, _ := json.Marshal(map[string]string{"error": message})
	w.Write(resp)
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: upload id is required", ErrBadRequest)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid upload id", ErrBadRequest)
	}
	return id, nil
}
