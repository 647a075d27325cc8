package paircode

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thkim0515/gagyebu/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "codes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGenerateCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(Alphabet, r), "unexpected character %q in %q", r, code)
		}
		require.NotContainsf(t, code, "0", "ambiguous glyph in %q", code)
		require.NotContainsf(t, code, "O", "ambiguous glyph in %q", code)
		require.NotContainsf(t, code, "1", "ambiguous glyph in %q", code)
		require.NotContainsf(t, code, "I", "ambiguous glyph in %q", code)
		require.NotContainsf(t, code, "L", "ambiguous glyph in %q", code)
	}
}

func TestPutAndTake(t *testing.T) {
	s := testStore(t)

	code, err := s.Put("sealed-payload")
	require.NoError(t, err)
	require.Len(t, code, CodeLength)

	payload, err := s.Take(code)
	require.NoError(t, err)
	require.Equal(t, "sealed-payload", payload)
}

func TestPutRejectsEmptyPayload(t *testing.T) {
	s := testStore(t)

	_, err := s.Put("")
	require.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestTakeNormalizesCode(t *testing.T) {
	s := testStore(t)

	code, err := s.Put("payload")
	require.NoError(t, err)

	payload, err := s.Take("  " + strings.ToLower(code) + " ")
	require.NoError(t, err)
	require.Equal(t, "payload", payload)
}

func TestTakeUnknownCode(t *testing.T) {
	s := testStore(t)

	_, err := s.Take("ZZZZZZZ")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTakeSecondTimeConflicts(t *testing.T) {
	s := testStore(t)

	code, err := s.Put("payload")
	require.NoError(t, err)

	_, err = s.Take(code)
	require.NoError(t, err)

	_, err = s.Take(code)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestTakeExpiredCode(t *testing.T) {
	s := testStore(t)

	base := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	code, err := s.Put("payload")
	require.NoError(t, err)

	s.SetClock(func() time.Time { return base.Add(TTL + time.Second) })
	_, err = s.Take(code)
	require.ErrorIs(t, err, apperr.ErrExpired)
}

func TestTakeJustInsideWindow(t *testing.T) {
	s := testStore(t)

	base := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	code, err := s.Put("payload")
	require.NoError(t, err)

	s.SetClock(func() time.Time { return base.Add(TTL) })
	payload, err := s.Take(code)
	require.NoError(t, err)
	require.Equal(t, "payload", payload)
}
