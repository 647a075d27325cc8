// Package models defines the domain types shared across the ledger pipeline.
package models

import "time"

// TxType tags a ledger record as money in or money out.
type TxType string

// The only two valid transaction types.
const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// Valid reports whether t is one of the two known transaction types.
func (t TxType) Valid() bool {
	return t == TxIncome || t == TxExpense
}

// RawNotification is one system notification as delivered by the bridge.
// It is consumed during a reconciliation run and never persisted.
type RawNotification struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ParsedTransaction is the parser's structured reading of a notification.
// It is either discarded or converted into a Record by the reconciler.
type ParsedTransaction struct {
	Title          string
	Source         string
	Amount         int64
	Type           TxType
	Category       string
	Date           string // calendar day, YYYY-MM-DD
	ChapterTitle   string // "<year>년 <month>월"
	IsCancellation bool
	IsTransfer     bool
	IsPaid         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Record is one income or expense entry owned by the ledger store.
type Record struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapterId"`
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	Type      TxType    `json:"type"`
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	Source    string    `json:"source"`
	IsPaid    bool      `json:"isPaid"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Chapter is a named ledger period grouping records (e.g. "2025년 12월").
type Chapter struct {
	ChapterID   string    `json:"chapterId"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	Order       int       `json:"order"`
	IsTemporary bool      `json:"isTemporary"`
}

// Category is a user-visible spending category.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Snapshot is the full exportable state of the local ledger. It is what
// travels (compressed and encrypted) through the pairing exchange.
type Snapshot struct {
	Chapters   []Chapter  `json:"chapters"`
	Records    []Record   `json:"records"`
	Categories []Category `json:"categories"`
	ExportedAt time.Time  `json:"exportedAt"`
}
