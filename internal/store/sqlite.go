package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/thkim0515/gagyebu/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chapters (
	chapter_id   TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ord          INTEGER NOT NULL DEFAULT 0,
	is_temporary INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	chapter_id TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	amount     INTEGER NOT NULL,
	type       TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	is_paid    INTEGER NOT NULL DEFAULT 1,
	ord        INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_date    ON records(date);
CREATE INDEX IF NOT EXISTS idx_records_chapter ON records(chapter_id);

CREATE TABLE IF NOT EXISTS categories (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	ord  INTEGER NOT NULL DEFAULT 0
);
`

// SQLite is the Ledger implementation backing the daemon.
type SQLite struct {
	conn *sql.DB

	mu           sync.RWMutex
	chapterSubs  []func([]models.Chapter)
	recordSubs   []func([]models.Record)
	categorySubs []func([]models.Category)
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// --- reads ---

func (s *SQLite) Chapters() ([]models.Chapter, error) {
	rows, err := s.conn.Query(`SELECT chapter_id, title, created_at, ord, is_temporary FROM chapters ORDER BY ord, created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ChapterID, &c.Title, &c.CreatedAt, &c.Order, &c.IsTemporary); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Records() ([]models.Record, error) {
	return s.queryRecords(`SELECT `+recordCols+` FROM records ORDER BY created_at`)
}

func (s *SQLite) RecordsByDate(date string) ([]models.Record, error) {
	return s.queryRecords(`SELECT `+recordCols+` FROM records WHERE date = ? ORDER BY created_at`, date)
}

func (s *SQLite) RecordsByChapter(chapterID string) ([]models.Record, error) {
	return s.queryRecords(`SELECT `+recordCols+` FROM records WHERE chapter_id = ? ORDER BY ord, created_at`, chapterID)
}

func (s *SQLite) Categories() ([]models.Category, error) {
	rows, err := s.conn.Query(`SELECT id, name, ord FROM categories ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Order); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const recordCols = `id, chapter_id, title, amount, type, category, date, source, is_paid, ord, created_at, updated_at`

func (s *SQLite) queryRecords(q string, args ...any) ([]models.Record, error) {
	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.ChapterID, &r.Title, &r.Amount, &r.Type, &r.Category,
			&r.Date, &r.Source, &r.IsPaid, &r.Order, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- writes ---

func (s *SQLite) AddChapter(c models.Chapter) (string, error) {
	if c.ChapterID == "" {
		c.ChapterID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.conn.Exec(`INSERT INTO chapters (chapter_id, title, created_at, ord, is_temporary) VALUES (?, ?, ?, ?, ?)`,
		c.ChapterID, c.Title, c.CreatedAt, c.Order, c.IsTemporary)
	if err != nil {
		return "", fmt.Errorf("store: add chapter: %w", err)
	}
	s.notifyChapters()
	return c.ChapterID, nil
}

func (s *SQLite) AddRecord(r models.Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	_, err := s.conn.Exec(`INSERT INTO records (`+recordCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ChapterID, r.Title, r.Amount, r.Type, r.Category, r.Date, r.Source, r.IsPaid, r.Order, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("store: add record: %w", err)
	}
	s.notifyRecords()
	return r.ID, nil
}

func (s *SQLite) AddCategory(c models.Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.conn.Exec(`INSERT INTO categories (id, name, ord) VALUES (?, ?, ?)`, c.ID, c.Name, c.Order)
	if err != nil {
		return "", fmt.Errorf("store: add category: %w", err)
	}
	s.notifyCategories()
	return c.ID, nil
}

func (s *SQLite) PutChapter(c models.Chapter) error {
	_, err := s.conn.Exec(`
		INSERT INTO chapters (chapter_id, title, created_at, ord, is_temporary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chapter_id) DO UPDATE SET
			title        = excluded.title,
			created_at   = excluded.created_at,
			ord          = excluded.ord,
			is_temporary = excluded.is_temporary
	`, c.ChapterID, c.Title, c.CreatedAt, c.Order, c.IsTemporary)
	if err != nil {
		return fmt.Errorf("store: put chapter: %w", err)
	}
	s.notifyChapters()
	return nil
}

func (s *SQLite) PutRecord(r models.Record) error {
	_, err := s.conn.Exec(`
		INSERT INTO records (`+recordCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter_id = excluded.chapter_id,
			title      = excluded.title,
			amount     = excluded.amount,
			type       = excluded.type,
			category   = excluded.category,
			date       = excluded.date,
			source     = excluded.source,
			is_paid    = excluded.is_paid,
			ord        = excluded.ord,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, r.ID, r.ChapterID, r.Title, r.Amount, r.Type, r.Category, r.Date, r.Source, r.IsPaid, r.Order, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: put record: %w", err)
	}
	s.notifyRecords()
	return nil
}

func (s *SQLite) PutCategory(c models.Category) error {
	_, err := s.conn.Exec(`
		INSERT INTO categories (id, name, ord) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, ord = excluded.ord
	`, c.ID, c.Name, c.Order)
	if err != nil {
		return fmt.Errorf("store: put category: %w", err)
	}
	s.notifyCategories()
	return nil
}

func (s *SQLite) DeleteChapter(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM chapters WHERE chapter_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete chapter: %w", err)
	}
	s.notifyChapters()
	return nil
}

func (s *SQLite) DeleteRecord(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	s.notifyRecords()
	return nil
}

func (s *SQLite) DeleteCategory(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete category: %w", err)
	}
	s.notifyCategories()
	return nil
}

func (s *SQLite) ClearChapters() error {
	if _, err := s.conn.Exec(`DELETE FROM chapters`); err != nil {
		return fmt.Errorf("store: clear chapters: %w", err)
	}
	s.notifyChapters()
	return nil
}

func (s *SQLite) ClearRecords() error {
	if _, err := s.conn.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("store: clear records: %w", err)
	}
	s.notifyRecords()
	return nil
}

func (s *SQLite) ClearCategories() error {
	if _, err := s.conn.Exec(`DELETE FROM categories`); err != nil {
		return fmt.Errorf("store: clear categories: %w", err)
	}
	s.notifyCategories()
	return nil
}

// ReplaceAll swaps every collection for the snapshot's contents inside one
// transaction, then notifies all three collections once.
func (s *SQLite) ReplaceAll(snap models.Snapshot) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, q := range []string{`DELETE FROM chapters`, `DELETE FROM records`, `DELETE FROM categories`} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("store: clear for replace: %w", err)
		}
	}
	for _, c := range snap.Chapters {
		if _, err := tx.Exec(`INSERT INTO chapters (chapter_id, title, created_at, ord, is_temporary) VALUES (?, ?, ?, ?, ?)`,
			c.ChapterID, c.Title, c.CreatedAt, c.Order, c.IsTemporary); err != nil {
			return fmt.Errorf("store: replace chapter: %w", err)
		}
	}
	for _, r := range snap.Records {
		if _, err := tx.Exec(`INSERT INTO records (`+recordCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ChapterID, r.Title, r.Amount, r.Type, r.Category, r.Date, r.Source, r.IsPaid, r.Order, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("store: replace record: %w", err)
		}
	}
	for _, c := range snap.Categories {
		if _, err := tx.Exec(`INSERT INTO categories (id, name, ord) VALUES (?, ?, ?)`, c.ID, c.Name, c.Order); err != nil {
			return fmt.Errorf("store: replace category: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit replace: %w", err)
	}

	s.notifyChapters()
	s.notifyRecords()
	s.notifyCategories()
	return nil
}

// --- subscriptions ---

func (s *SQLite) SubscribeChapters(fn func([]models.Chapter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapterSubs = append(s.chapterSubs, fn)
}

func (s *SQLite) SubscribeRecords(fn func([]models.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordSubs = append(s.recordSubs, fn)
}

func (s *SQLite) SubscribeCategories(fn func([]models.Category)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categorySubs = append(s.categorySubs, fn)
}

// Listeners run synchronously after the write commits, with the collection's
// current list. A read failure here means the write already succeeded, so it
// is swallowed rather than failing the mutation.

func (s *SQLite) notifyChapters() {
	s.mu.RLock()
	subs := s.chapterSubs
	s.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list, err := s.Chapters()
	if err != nil {
		return
	}
	for _, fn := range subs {
		fn(list)
	}
}

func (s *SQLite) notifyRecords() {
	s.mu.RLock()
	subs := s.recordSubs
	s.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list, err := s.Records()
	if err != nil {
		return
	}
	for _, fn := range subs {
		fn(list)
	}
}

func (s *SQLite) notifyCategories() {
	s.mu.RLock()
	subs := s.categorySubs
	s.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list, err := s.Categories()
	if err != nil {
		return
	}
	for _, fn := range subs {
		fn(list)
	}
}
