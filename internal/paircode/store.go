// Package paircode implements the stateless remote side of the pairing
// exchange: one-time codes mapped to encrypted payloads, valid for a short
// window measured from server-assigned creation time.
package paircode

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thkim0515/gagyebu/internal/apperr"
)

// Alphabet excludes visually ambiguous glyphs (0/O, 1/I/L).
const (
	Alphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength = 7

	// TTL is the validity window from server-assigned creation time. A code
	// older than this is permanently unusable; there is no grace period and
	// no background sweep.
	TTL = 3 * time.Minute
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_codes (
	code       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	is_used    INTEGER NOT NULL DEFAULT 0
);
`

// GenerateCode returns a fresh pairing code drawn from the restricted
// alphabet using a cryptographic source.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("paircode: random: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Normalize makes user-entered codes comparable: trimmed, uppercase.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Store persists sync packages in SQLite.
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the sync-code database.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("paircode: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("paircode: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("paircode: apply schema: %w", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// SetClock injects a clock for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Put stores a payload under a freshly generated code, stamping creation
// with the server clock, and returns the code. An empty payload is rejected
// before any code is generated.
func (s *Store) Put(payload string) (string, error) {
	if payload == "" {
		return "", apperr.ErrBadRequest
	}

	// A collision on the 31^7 space is unlikely but cheap to retry.
	for attempt := 0; attempt < 5; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		_, err = s.conn.Exec(`INSERT INTO sync_codes (code, payload, created_at, is_used) VALUES (?, ?, ?, 0)`,
			code, payload, s.now())
		if err == nil {
			return code, nil
		}
		if !isUniqueViolation(err) {
			return "", fmt.Errorf("paircode: put: %w", err)
		}
	}
	return "", errors.New("paircode: could not allocate a unique code")
}

// Take fetches the payload for a code and consumes the code. The check and
// the mark are a plain read-then-write; two near-simultaneous importers of
// one code may both succeed. That race is tolerated, not prevented.
func (s *Store) Take(code string) (string, error) {
	code = Normalize(code)
	if code == "" {
		return "", apperr.ErrBadRequest
	}

	var payload string
	var createdAt time.Time
	var isUsed bool
	err := s.conn.QueryRow(`SELECT payload, created_at, is_used FROM sync_codes WHERE code = ?`, code).
		Scan(&payload, &createdAt, &isUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("paircode: take: %w", err)
	}

	if isUsed {
		return "", apperr.ErrConflict
	}
	if s.now().Sub(createdAt) > TTL {
		return "", apperr.ErrExpired
	}

	if _, err := s.conn.Exec(`UPDATE sync_codes SET is_used = 1 WHERE code = ?`, code); err != nil {
		return "", fmt.Errorf("paircode: mark used: %w", err)
	}
	return payload, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
