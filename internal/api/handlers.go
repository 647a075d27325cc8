package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/bridge"
	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/store"
)

// Kicker wakes the reconciliation scheduler.
type Kicker interface {
	Trigger()
}

// Pairer runs the device side of the sync exchange.
type Pairer interface {
	Export(ctx context.Context, password string) (string, error)
	Import(ctx context.Context, code, password string) error
}

// Handler holds the device-role API route handlers.
type Handler struct {
	ledger store.Ledger
	queue  *bridge.Queue
	kicker Kicker
	pairer Pairer
}

// NewHandler creates a new Handler.
func NewHandler(ledger store.Ledger, queue *bridge.Queue, kicker Kicker, pairer Pairer) *Handler {
	return &Handler{ledger: ledger, queue: queue, kicker: kicker, pairer: pairer}
}

// IngestNotifications handles POST /api/notifications. The batch is queued
// on the bridge and the scheduler is kicked; reconciliation happens
// asynchronously, so the response is an acceptance, not a result.
func (h *Handler) IngestNotifications(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var batch []models.RawNotification
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(batch) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("at least one notification is required"))
		return
	}

	queued := 0
	for _, n := range batch {
		if n.Title == "" && n.Text == "" {
			continue
		}
		if h.queue.Push(n) {
			queued++
		}
	}
	if queued > 0 {
		h.kicker.Trigger()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
}

// TriggerSync handles POST /api/sync/trigger.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.kicker.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{"triggered": true})
}

// ExportLedger handles POST /api/pairing/export.
func (h *Handler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	code, err := h.pairer.Export(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrBadRequest) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			slog.Error("export failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// ImportLedger handles POST /api/pairing/import.
func (h *Handler) ImportLedger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	err := h.pairer.Import(r.Context(), req.Code, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"imported": true})
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody("code and password are required"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("unknown code"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("code already used"))
	case errors.Is(err, apperr.ErrExpired):
		writeJSON(w, http.StatusGone, errorBody("code expired"))
	case errors.Is(err, apperr.ErrSyncFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("sync package could not be opened"))
	default:
		slog.Error("import failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListChapters handles GET /api/chapters.
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.ledger.Chapters()
	if err != nil {
		slog.Error("list chapters failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

// ListRecords handles GET /api/records with optional date or chapter filters.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		records []models.Record
		err     error
	)
	switch {
	case q.Get("date") != "":
		records, err = h.ledger.RecordsByDate(q.Get("date"))
	case q.Get("chapter") != "":
		records, err = h.ledger.RecordsByChapter(q.Get("chapter"))
	default:
		records, err = h.ledger.Records()
	}
	if err != nil {
		slog.Error("list records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.ledger.Categories()
	if err != nil {
		slog.Error("list categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}
