package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/bridge"
	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/parser"
	"github.com/thkim0515/gagyebu/internal/rules"
	"github.com/thkim0515/gagyebu/internal/store"
	"github.com/thkim0515/gagyebu/internal/testutil"
)

type fakeNotifier struct {
	mu      sync.Mutex
	events  []string
	changed int
}

func (f *fakeNotifier) PublishRecordEvent(kind, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind+":"+title)
}

func (f *fakeNotifier) LedgerChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed++
}

var testNow = time.Date(2025, 12, 3, 10, 0, 0, 0, time.Local)

func testEngine(t *testing.T, settings Settings) (*Engine, *store.SQLite, *bridge.Queue, *fakeNotifier) {
	t.Helper()
	s := testutil.TestStore(t)
	p := parser.NewWithClock(rules.NewEngine(), testutil.FixedClock(testNow))
	q := bridge.NewQueue()
	n := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, p, q, n, settings, logger), s, q, n
}

func allOn() Settings {
	return Settings{AutoSaveIncome: true, AutoSaveExpense: true}
}

func TestRun_CapturesRecordAndCreatesChapter(t *testing.T) {
	e, s, _, n := testEngine(t, allOn())

	err := e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
	})
	require.NoError(t, err)

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, int64(5000), recs[0].Amount)
	require.Equal(t, models.TxExpense, recs[0].Type)
	require.Equal(t, "신한카드", recs[0].Source)

	chs, err := s.Chapters()
	require.NoError(t, err)
	require.Len(t, chs, 1)
	require.Equal(t, "2025년 12월", chs[0].Title)
	require.Equal(t, 0, chs[0].Order)
	require.False(t, chs[0].IsTemporary)
	require.Equal(t, chs[0].ChapterID, recs[0].ChapterID)

	require.Equal(t, 1, n.changed)
}

func TestRun_IntraBatchDuplicateProducesOneRecord(t *testing.T) {
	e, s, _, _ := testEngine(t, allOn())

	// Same day, same amount, overlapping titles: exactly one record.
	err := e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
		{Title: "신한카드", Text: "승인 스타벅스 강남점 5,000원"},
	})
	require.NoError(t, err)

	recs, _ := s.Records()
	require.Len(t, recs, 1)

	chs, _ := s.Chapters()
	require.Len(t, chs, 1, "second item must reuse the chapter created by the first")
}

func TestRun_CrossRunDuplicateSkipped(t *testing.T) {
	e, s, _, _ := testEngine(t, allOn())
	batch := []models.RawNotification{{Title: "신한카드", Text: "승인 스타벅스 5,000원"}}

	require.NoError(t, e.Run(context.Background(), batch))
	require.NoError(t, e.Run(context.Background(), batch))

	recs, _ := s.Records()
	require.Len(t, recs, 1)
}

func TestRun_CancellationDeletesMatch(t *testing.T) {
	e, s, _, n := testEngine(t, allOn())

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
	}))

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인취소 스타벅스 5,000원"},
	}))

	recs, _ := s.Records()
	require.Empty(t, recs, "cancellation must delete the matched record and create none")
	require.Contains(t, n.events, "deleted:스타벅스")
}

func TestRun_CancellationWithoutMatchIsSkip(t *testing.T) {
	e, s, _, _ := testEngine(t, allOn())

	err := e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인취소 스타벅스 5,000원"},
	})
	require.NoError(t, err, "unmatched cancellation is not an error")

	recs, _ := s.Records()
	require.Empty(t, recs)
}

func TestRun_CancellationDeletesExactlyOne(t *testing.T) {
	e, s, _, _ := testEngine(t, allOn())

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
	}))

	// A second candidate on an earlier day: same amount, overlapping title.
	// The duplicate check is per-day so both coexist, and the cancellation
	// matcher ignores the date, so it sees two matching records.
	chs, err := s.Chapters()
	require.NoError(t, err)
	require.Len(t, chs, 1)
	_, err = s.AddRecord(models.Record{
		ChapterID: chs[0].ChapterID,
		Title:     "스타벅스입구점",
		Amount:    5000,
		Type:      models.TxExpense,
		Category:  "식비",
		Date:      "2025-12-01",
	})
	require.NoError(t, err)

	recs, _ := s.Records()
	require.Len(t, recs, 2)

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인취소 스타벅스 5,000원"},
	}))

	recs, _ = s.Records()
	require.Len(t, recs, 1, "cancellation must delete exactly one of the matches")
}

func TestRun_SettingsGate(t *testing.T) {
	e, s, _, _ := testEngine(t, Settings{AutoSaveIncome: true, AutoSaveExpense: false})

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},           // expense: disabled
		{Title: "카카오뱅크", Text: "입금 300,000원 월급"},          // income: enabled
	}))

	recs, _ := s.Records()
	require.Len(t, recs, 1)
	require.Equal(t, models.TxIncome, recs[0].Type)
}

func TestRun_NonFinancialSkipped(t *testing.T) {
	e, s, _, _ := testEngine(t, allOn())

	require.NoError(t, e.Run(context.Background(), []models.RawNotification{
		{Title: "날씨", Text: "오늘은 맑음"},
	}))

	recs, _ := s.Records()
	require.Empty(t, recs)
}

func TestRun_BusyDropsReentrant(t *testing.T) {
	e, _, _, _ := testEngine(t, allOn())

	require.True(t, e.acquire())
	err := e.Run(context.Background(), []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
	})
	require.ErrorIs(t, err, apperr.ErrBusy)
	e.release()

	require.Equal(t, Idle, e.State())
}

func TestRun_EmptyBatchIsNoop(t *testing.T) {
	e, _, q, n := testEngine(t, allOn())
	q.Push(models.RawNotification{Title: "신한카드", Text: "승인 스타벅스 5,000원"})

	require.NoError(t, e.Run(context.Background(), nil))
	require.Equal(t, 1, q.Len(), "empty run must not clear the bridge")
	require.Zero(t, n.changed, "empty run must not signal")
}

func TestRun_ClearsBridgeOnSuccess(t *testing.T) {
	e, _, q, _ := testEngine(t, allOn())
	q.Push(models.RawNotification{Title: "신한카드", Text: "승인 스타벅스 5,000원"})

	require.NoError(t, e.Run(context.Background(), q.Pending()))
	require.Zero(t, q.Len())
}

// lateArrivalLedger pushes a fresh notification onto the queue the moment a
// record write commits, simulating an alert landing while a run is active.
type lateArrivalLedger struct {
	store.Ledger
	queue *bridge.Queue
	once  sync.Once
}

func (l *lateArrivalLedger) AddRecord(r models.Record) (string, error) {
	l.once.Do(func() {
		l.queue.Push(models.RawNotification{Title: "국민카드", Text: "승인 교보문고 12,000원"})
	})
	return l.Ledger.AddRecord(r)
}

func TestRun_MidRunArrivalSurvivesClear(t *testing.T) {
	s := testutil.TestStore(t)
	q := bridge.NewQueue()
	l := &lateArrivalLedger{Ledger: s, queue: q}
	p := parser.NewWithClock(rules.NewEngine(), testutil.FixedClock(testNow))
	n := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(l, p, q, n, allOn(), logger)

	q.Push(models.RawNotification{Title: "신한카드", Text: "승인 스타벅스 5,000원"})
	require.NoError(t, e.Run(context.Background(), q.Pending()))

	left := q.Pending()
	require.Len(t, left, 1, "notification queued mid-run must survive the post-batch drain")
	require.Equal(t, "국민카드", left[0].Title)
}

// failingLedger wraps a Ledger and fails AddRecord after a number of calls.
type failingLedger struct {
	store.Ledger
	failAfter int
	calls     int
}

func (f *failingLedger) AddRecord(r models.Record) (string, error) {
	f.calls++
	if f.calls > f.failAfter {
		return "", errors.New("disk full")
	}
	return f.Ledger.AddRecord(r)
}

func TestRun_StoreFailureAbortsRemainderKeepsBridge(t *testing.T) {
	s := testutil.TestStore(t)
	f := &failingLedger{Ledger: s, failAfter: 1}
	p := parser.NewWithClock(rules.NewEngine(), testutil.FixedClock(testNow))
	q := bridge.NewQueue()
	n := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(f, p, q, n, allOn(), logger)

	batch := []models.RawNotification{
		{Title: "신한카드", Text: "승인 스타벅스 5,000원"},
		{Title: "국민카드", Text: "승인 교보문고 12,000원"},
	}
	for _, noti := range batch {
		q.Push(noti)
	}

	err := e.Run(context.Background(), q.Pending())
	require.Error(t, err)

	// First mutation stays committed; no rollback.
	recs, _ := s.Records()
	require.Len(t, recs, 1)
	require.Equal(t, int64(5000), recs[0].Amount)

	// Bridge keeps the batch for the next trigger, and no completion signal fired.
	require.Equal(t, 2, q.Len())
	require.Zero(t, n.changed)
	require.Equal(t, Idle, e.State())

	// Retry after recovery: dedup protects the applied mutation.
	f.failAfter = 100
	require.NoError(t, e.Run(context.Background(), q.Pending()))
	recs, _ = s.Records()
	require.Len(t, recs, 2)
	require.Zero(t, q.Len())
}
