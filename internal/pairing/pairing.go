// Package pairing implements the device side of the sync exchange: packing
// the whole ledger into an encrypted package, shipping it to the remote
// store, and pulling a package back by code.
package pairing

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/paircode"
	"github.com/thkim0515/gagyebu/internal/seal"
	"github.com/thkim0515/gagyebu/internal/store"
)

// MinPasswordLen is enforced before any payload is built.
const MinPasswordLen = 4

// Notifier receives the post-import change signal.
type Notifier interface {
	LedgerChanged()
}

// Service packs and unpacks ledger snapshots against a remote store.
type Service struct {
	ledger   store.Ledger
	notifier Notifier
	baseURL  string
	httpc    *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a pairing service talking to the remote store at baseURL.
func New(ledger store.Ledger, notifier Notifier, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		ledger:   ledger,
		notifier: notifier,
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

type uploadRequest struct {
	Payload string `json:"payload"`
}

// The remote wraps results in a data envelope: the upload response carries
// {"data":{"pairingCode":...}}, the download response {"data": payload}.
type uploadResponse struct {
	Data struct {
		PairingCode string `json:"pairingCode"`
	} `json:"data"`
}

type downloadRequest struct {
	Code string `json:"code"`
}

type downloadResponse struct {
	Data string `json:"data"`
}

// Export gathers the full ledger, seals it under password and uploads it.
// It returns the one-time code the other device types in.
func (s *Service) Export(ctx context.Context, password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", fmt.Errorf("%w: password must be at least %d characters", apperr.ErrBadRequest, MinPasswordLen)
	}

	snap, err := s.gather()
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("pairing: encode snapshot: %w", err)
	}

	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("pairing: compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("pairing: compress snapshot: %w", err)
	}

	sealed, err := seal.Encrypt(zipped.Bytes(), password)
	if err != nil {
		return "", fmt.Errorf("pairing: seal snapshot: %w", err)
	}

	var resp uploadResponse
	if err := s.post(ctx, "/upload", uploadRequest{Payload: sealed}, &resp); err != nil {
		return "", err
	}

	s.logger.Info("ledger exported",
		slog.Int("chapters", len(snap.Chapters)),
		slog.Int("records", len(snap.Records)))
	return resp.Data.PairingCode, nil
}

// Import fetches the package behind code, unseals it with password and
// replaces the local ledger with its contents. Existing local data is
// discarded, not merged.
func (s *Service) Import(ctx context.Context, code, password string) error {
	code = paircode.Normalize(code)
	if code == "" || password == "" {
		return apperr.ErrBadRequest
	}

	var resp downloadResponse
	if err := s.post(ctx, "/download", downloadRequest{Code: code}, &resp); err != nil {
		return err
	}

	plain, err := seal.Decrypt(resp.Data, password)
	if err != nil {
		// Wrong password and corrupt payload look the same to the user.
		return apperr.ErrSyncFailed
	}

	zr, err := gzip.NewReader(bytes.NewReader(plain))
	if err != nil {
		return apperr.ErrSyncFailed
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return apperr.ErrSyncFailed
	}
	if err := zr.Close(); err != nil {
		return apperr.ErrSyncFailed
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return apperr.ErrSyncFailed
	}

	if err := s.ledger.ReplaceAll(snap); err != nil {
		return fmt.Errorf("pairing: replace ledger: %w", err)
	}
	s.notifier.LedgerChanged()

	s.logger.Info("ledger imported",
		slog.Int("chapters", len(snap.Chapters)),
		slog.Int("records", len(snap.Records)))
	return nil
}

func (s *Service) gather() (models.Snapshot, error) {
	chapters, err := s.ledger.Chapters()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("pairing: load chapters: %w", err)
	}
	records, err := s.ledger.Records()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("pairing: load records: %w", err)
	}
	categories, err := s.ledger.Categories()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("pairing: load categories: %w", err)
	}
	return models.Snapshot{
		Chapters:   chapters,
		Records:    records,
		Categories: categories,
		ExportedAt: s.now().UTC(),
	}, nil
}

func (s *Service) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("pairing: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pairing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("pairing: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return apperr.ErrBadRequest
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusGone:
		return apperr.ErrExpired
	default:
		return fmt.Errorf("pairing: %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pairing: decode response: %w", err)
	}
	return nil
}
