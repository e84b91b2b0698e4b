package kds

import "errors"

var (
	// ErrNotFound covers unknown venues, stations and ticket codes.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition rejects an illegal state change.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyBumped rejects bumping a ticket that is already bumped.
	ErrAlreadyBumped = errors.New("ticket already bumped")

	// ErrRouting means no station resolves a category and no fallback exists.
	ErrRouting = errors.New("no station resolves category")
)

// errVoidNoop marks a void on an already-voided ticket. It never leaves the
// package; callers observe an idempotent success.
var errVoidNoop = errors.New("ticket already voided")

// CapacityAdvisory signals that a station was pushed past its advisory
// capacity. It is informational only and never blocks a ticket.
type CapacityAdvisory struct {
	StationCode string `json:"station_code"`
	CurrentLoad int    `json:"current_load"`
	MaxCapacity int    `json:"max_capacity"`
}
