// Package recon merges batches of parsed notifications into the ledger:
// dedup, cancellation matching, and chapter resolution.
package recon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/bridge"
	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/parser"
	"github.com/thkim0515/gagyebu/internal/store"
)

// Settings gates which transaction types are auto-captured.
type Settings struct {
	AutoSaveIncome  bool
	AutoSaveExpense bool
}

// Notifier receives ledger-change signals after mutations commit.
type Notifier interface {
	PublishRecordEvent(kind, title string)
	LedgerChanged()
}

// State is the engine's run state.
type State int32

// The engine is a two-state machine; Run rejects while Running.
const (
	Idle State = iota
	Running
)

// Engine executes one reconciliation run at a time. Re-entrant runs are
// dropped (ErrBusy), not queued: the pending notifications stay at the
// bridge for the next trigger.
type Engine struct {
	store    store.Ledger
	parser   *parser.Parser
	bridge   bridge.Bridge
	notifier Notifier
	settings Settings
	logger   *slog.Logger

	stateCh chan State
}

// New creates a reconciliation engine.
func New(ledger store.Ledger, p *parser.Parser, br bridge.Bridge, n Notifier, settings Settings, logger *slog.Logger) *Engine {
	e := &Engine{
		store:    ledger,
		parser:   p,
		bridge:   br,
		notifier: n,
		settings: settings,
		logger:   logger,
		stateCh:  make(chan State, 1),
	}
	e.stateCh <- Idle
	return e
}

// State returns the current run state.
func (e *Engine) State() State {
	s := <-e.stateCh
	e.stateCh <- s
	return s
}

// acquire transitions Idle→Running; it fails when already Running.
func (e *Engine) acquire() bool {
	s := <-e.stateCh
	if s == Running {
		e.stateCh <- Running
		return false
	}
	e.stateCh <- Running
	return true
}

func (e *Engine) release() {
	<-e.stateCh
	e.stateCh <- Idle
}

// Run processes one batch strictly in arrival order. Each item is reflected
// into the in-memory snapshot before the next is evaluated, so intra-batch
// duplicates and freshly created chapters are visible to later items. On a
// store write failure the remainder of the batch is aborted and the bridge
// is NOT cleared; applied mutations stay committed (the dedup check protects
// them from being re-applied on retry).
func (e *Engine) Run(ctx context.Context, batch []models.RawNotification) error {
	if len(batch) == 0 {
		return nil
	}
	if !e.acquire() {
		return apperr.ErrBusy
	}
	defer e.release()

	chapters, err := e.store.Chapters()
	if err != nil {
		return fmt.Errorf("recon: load chapters: %w", err)
	}
	records, err := e.store.Records()
	if err != nil {
		return fmt.Errorf("recon: load records: %w", err)
	}

	for _, noti := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := e.parser.Parse(noti.Title + " " + noti.Text)
		if tx == nil {
			e.logger.Debug("recon: not a financial notification", slog.String("title", noti.Title))
			continue
		}

		if !e.typeEnabled(tx.Type) {
			e.logger.Debug("recon: type disabled by settings", slog.String("type", string(tx.Type)))
			continue
		}

		if tx.IsCancellation {
			if err := e.applyCancellation(tx, &records); err != nil {
				e.logger.Error("recon: cancellation write failed, aborting batch",
					slog.String("error", err.Error()))
				return err
			}
			continue
		}

		if hasDuplicate(records, tx) {
			e.logger.Debug("recon: duplicate skipped", slog.String("title", tx.Title))
			continue
		}

		if err := e.persist(tx, &chapters, &records); err != nil {
			e.logger.Error("recon: record write failed, aborting batch",
				slog.String("error", err.Error()))
			return err
		}
	}

	// Only a fully processed batch acknowledges consumption, and only the
	// items this run actually took; an aborted run leaves everything queued,
	// and notifications that arrived mid-run survive for the next trigger.
	e.bridge.Clear(len(batch))
	e.notifier.LedgerChanged()
	return nil
}

func (e *Engine) typeEnabled(t models.TxType) bool {
	switch t {
	case models.TxIncome:
		return e.settings.AutoSaveIncome
	case models.TxExpense:
		return e.settings.AutoSaveExpense
	}
	return false
}

// applyCancellation deletes the first record matching the cancellation's
// amount and title. No match is a skip, not an error.
func (e *Engine) applyCancellation(tx *models.ParsedTransaction, records *[]models.Record) error {
	for i, r := range *records {
		if r.Amount != tx.Amount || !titlesOverlap(r.Title, tx.Title) {
			continue
		}
		if err := e.store.DeleteRecord(r.ID); err != nil {
			return fmt.Errorf("recon: delete cancelled record: %w", err)
		}
		*records = append((*records)[:i], (*records)[i+1:]...)
		e.notifier.PublishRecordEvent("deleted", r.Title)
		e.logger.Info("recon: cancellation applied",
			slog.String("title", r.Title), slog.Int64("amount", r.Amount))
		return nil
	}
	e.logger.Debug("recon: cancellation had no matching record", slog.String("title", tx.Title))
	return nil
}

// persist resolves (or creates) the chapter and writes the record, updating
// the in-memory snapshot as it goes.
func (e *Engine) persist(tx *models.ParsedTransaction, chapters *[]models.Chapter, records *[]models.Record) error {
	chapterID := ""
	for _, c := range *chapters {
		if c.Title == tx.ChapterTitle {
			chapterID = c.ChapterID
			break
		}
	}

	if chapterID == "" {
		ch := models.Chapter{
			Title:       tx.ChapterTitle,
			CreatedAt:   chapterCreatedAt(tx),
			Order:       len(*chapters),
			IsTemporary: false,
		}
		id, err := e.store.AddChapter(ch)
		if err != nil {
			return fmt.Errorf("recon: create chapter: %w", err)
		}
		ch.ChapterID = id
		*chapters = append(*chapters, ch)
		chapterID = id
		e.logger.Info("recon: chapter created", slog.String("title", ch.Title))
	}

	rec := models.Record{
		ChapterID: chapterID,
		Title:     tx.Title,
		Amount:    tx.Amount,
		Type:      tx.Type,
		Category:  tx.Category,
		Date:      tx.Date,
		Source:    tx.Source,
		IsPaid:    tx.IsPaid,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
	id, err := e.store.AddRecord(rec)
	if err != nil {
		return fmt.Errorf("recon: add record: %w", err)
	}
	rec.ID = id
	*records = append(*records, rec)
	e.notifier.PublishRecordEvent("created", rec.Title)
	e.logger.Info("recon: record captured",
		slog.String("title", rec.Title),
		slog.Int64("amount", rec.Amount),
		slog.String("type", string(rec.Type)))
	return nil
}

// hasDuplicate reports whether a record with the same date, same amount, and
// an overlapping title already exists.
func hasDuplicate(records []models.Record, tx *models.ParsedTransaction) bool {
	for _, r := range records {
		if r.Date == tx.Date && r.Amount == tx.Amount && titlesOverlap(r.Title, tx.Title) {
			return true
		}
	}
	return false
}

// titlesOverlap is the bidirectional substring match used for both dedup and
// cancellation. It is deliberately permissive (short titles can misfire);
// kept as the documented matching contract.
func titlesOverlap(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func chapterCreatedAt(tx *models.ParsedTransaction) time.Time {
	if d, err := time.ParseInLocation("2006-01-02", tx.Date, time.Local); err == nil {
		return d
	}
	return tx.CreatedAt
}
