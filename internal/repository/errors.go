// Package repository holds the SQL data access for class sessions and the
// order-line ledger.  Sentinel errors below let the booking layer tell
// "not there" and "already there" apart from infrastructure failures.
package repository

import "errors"

// ErrSessionNotFound is returned when no class_sessions row matches.
var ErrSessionNotFound = errors.New("session not found")

// ErrDuplicate is returned when an insert or update hits a unique key,
// e.g. an identical (class, date, start, end) slot or an order line that
// was already completed.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a write cannot proceed because of current
// state, such as deleting a session that already has bookings.
var ErrConflict = errors.New("conflict")
