// Package store provides the persistent ledger store. Consumers depend on
// the Ledger contract; the SQLite implementation lives alongside it.
package store

import "github.com/thkim0515/gagyebu/internal/models"

// Ledger is the per-collection contract over chapters, records, and
// categories. Every committed write notifies that collection's subscribers
// with the current list.
type Ledger interface {
	Chapters() ([]models.Chapter, error)
	Records() ([]models.Record, error)
	RecordsByDate(date string) ([]models.Record, error)
	RecordsByChapter(chapterID string) ([]models.Record, error)
	Categories() ([]models.Category, error)

	// Add assigns and returns the new entity's id.
	AddChapter(c models.Chapter) (string, error)
	AddRecord(r models.Record) (string, error)
	AddCategory(c models.Category) (string, error)

	// Put upserts by primary key.
	PutChapter(c models.Chapter) error
	PutRecord(r models.Record) error
	PutCategory(c models.Category) error

	DeleteChapter(id string) error
	DeleteRecord(id string) error
	DeleteCategory(id string) error

	ClearChapters() error
	ClearRecords() error
	ClearCategories() error

	// ReplaceAll swaps the entire ledger for the snapshot's contents.
	// Used by the pairing import, which overwrites rather than merges.
	ReplaceAll(snap models.Snapshot) error

	SubscribeChapters(fn func([]models.Chapter))
	SubscribeRecords(fn func([]models.Record))
	SubscribeCategories(fn func([]models.Category))

	Close() error
}

// Verify *SQLite satisfies Ledger at compile time.
var _ Ledger = (*SQLite)(nil)
