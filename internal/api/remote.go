package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/paircode"
)

// RemoteHandler serves the remote-store side of the pairing exchange.
// These endpoints are deliberately unauthenticated: the sealed payload is
// the only secret, and codes expire on their own.
type RemoteHandler struct {
	codes *paircode.Store
}

// NewRemoteHandler creates a RemoteHandler over the given code store.
func NewRemoteHandler(codes *paircode.Store) *RemoteHandler {
	return &RemoteHandler{codes: codes}
}

// Upload handles POST /upload: store a sealed payload, return its code.
func (h *RemoteHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	code, err := h.codes.Put(req.Payload)
	if err != nil {
		if errors.Is(err, apperr.ErrBadRequest) {
			writeJSON(w, http.StatusBadRequest, errorBody("payload is required"))
		} else {
			slog.Error("upload failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"pairingCode": code}})
}

// Download handles POST /download: consume a code, return its payload.
func (h *RemoteHandler) Download(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	payload, err := h.codes.Take(req.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"data": payload})
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody("code is required"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("unknown code"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("code already used"))
	case errors.Is(err, apperr.ErrExpired):
		writeJSON(w, http.StatusGone, errorBody("code expired"))
	default:
		slog.Error("download failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
