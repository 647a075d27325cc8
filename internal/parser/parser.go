// Package parser turns raw bank/card notification text into a structured
// transaction. It is a pure function over the active ruleset and the clock:
// text that does not look financial yields nil, never an error.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/rules"
)

var (
	// A digit group (optionally comma-separated) immediately followed by a
	// currency marker. Anything without this is not a financial notification.
	amountRe = regexp.MustCompile(`([\d,]+)\s*(?:원|KRW)`)

	clockRe  = regexp.MustCompile(`\d{1,2}:\d{1,2}`)
	dayRe    = regexp.MustCompile(`\d{1,2}/\d{1,2}`)
	digitRe  = regexp.MustCompile(`^\d{4}$`)
	maskedRe = regexp.MustCompile(`^[\d*]*\*+[\d*]*$`)

	normalizeRe = regexp.MustCompile(`[\[\](){}]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

var (
	cancelKeywords   = []string{"취소", "승인취소", "결제취소"}
	transferKeywords = []string{"이체", "송금", "보내기"}
	incomeKeywords   = []string{"입금", "환급", "받으세요", "보낸분"}

	// Tokens dropped from the derived title. "알림" is the placeholder the
	// notification bridge substitutes when a notification has no title.
	excludeKeywords = []string{
		"승인", "결제", "완료", "입금", "출금", "원", "KRW",
		"잔액", "카드", "뱅크", "취소", "이체", "송금", "알림",
	}
)

// Fallback titles when every token of the text was filtered out.
const (
	titleTransfer = "계좌 이체"
	titleIncome   = "입금 내역"
	titleExpense  = "지출 내역"
)

// Parser classifies notification text against an injected rule engine.
type Parser struct {
	rules *rules.Engine
	now   func() time.Time
}

// New returns a parser using the given rule engine and the system clock.
func New(e *rules.Engine) *Parser {
	return &Parser{rules: e, now: time.Now}
}

// NewWithClock returns a parser with an injected clock, for tests.
func NewWithClock(e *rules.Engine, now func() time.Time) *Parser {
	return &Parser{rules: e, now: now}
}

// Parse extracts a transaction from raw notification text. It returns nil
// when the text carries no positive amount followed by 원/KRW.
func (p *Parser) Parse(raw string) *models.ParsedTransaction {
	clean := normalize(raw)
	if clean == "" {
		return nil
	}

	m := amountRe.FindStringSubmatch(clean)
	if m == nil {
		return nil
	}
	amount, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil || amount <= 0 {
		return nil
	}

	isCancellation := containsAny(clean, cancelKeywords)
	isTransfer := containsAny(clean, transferKeywords)
	// Cancellation takes precedence: a "입금 취소" alert must not be
	// classified as fresh income.
	isIncome := !isCancellation && containsAny(clean, incomeKeywords)

	txType := models.TxExpense
	if isIncome {
		txType = models.TxIncome
	}

	source := p.rules.ClassifyChannel(clean)
	title := deriveTitle(clean, m[1], source, txType, isTransfer)

	now := p.now()
	date := now.Format("2006-01-02")

	return &models.ParsedTransaction{
		Title:          title,
		Source:         source,
		Amount:         amount,
		Type:           txType,
		Category:       p.rules.ClassifyCategory(clean),
		Date:           date,
		ChapterTitle:   ChapterTitle(now),
		IsCancellation: isCancellation,
		IsTransfer:     isTransfer,
		IsPaid:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ChapterTitle formats a time as the ledger period title, e.g. "2025년 12월".
func ChapterTitle(t time.Time) string {
	return fmt.Sprintf("%d년 %d월", t.Year(), int(t.Month()))
}

// normalize collapses newlines and bracket characters to spaces, squeezes
// repeated whitespace, and trims.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = normalizeRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// deriveTitle keeps the tokens of the normalized text that are neither the
// amount, nor payment boilerplate, nor time/date/masked-digit noise, nor the
// payment channel itself, and joins them as the merchant title.
func deriveTitle(clean, amountDigits, source string, txType models.TxType, isTransfer bool) string {
	sourceBase := strings.TrimSuffix(strings.TrimSuffix(source, "카드"), "뱅크")

	var kept []string
	for _, tok := range strings.Split(clean, " ") {
		switch {
		case strings.Contains(tok, amountDigits):
		case tokenExcluded(tok):
		case clockRe.MatchString(tok), dayRe.MatchString(tok):
		case digitRe.MatchString(tok), maskedRe.MatchString(tok):
		case sourceBase != "" && source != rules.Other && strings.Contains(tok, sourceBase):
		default:
			kept = append(kept, tok)
		}
	}

	title := strings.TrimSpace(strings.Join(kept, " "))
	if title != "" {
		return title
	}
	switch {
	case isTransfer:
		return titleTransfer
	case txType == models.TxIncome:
		return titleIncome
	default:
		return titleExpense
	}
}

func tokenExcluded(tok string) bool {
	for _, kw := range excludeKeywords {
		if strings.Contains(tok, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
