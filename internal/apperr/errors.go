// Package apperr holds the sentinel errors shared across service layers.
package apperr

import "errors"

var (
	// ErrBadRequest marks a request rejected before any work was done.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks a lookup for a pairing code that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a pairing code that was already consumed.
	ErrConflict = errors.New("conflict")
	// ErrExpired marks a pairing code past its time-to-live window.
	ErrExpired = errors.New("expired")
	// ErrBusy marks a reconciliation trigger dropped because a run is active.
	ErrBusy = errors.New("busy")
	// ErrSyncFailed is the generic pairing failure surfaced for both a wrong
	// password and a corrupt payload; the two are intentionally not told apart.
	ErrSyncFailed = errors.New("sync failed")
)
