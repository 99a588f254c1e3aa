package planner

import "errors"

var (
	// ErrInvalidStation is returned when an origin or destination name does
	// not resolve against the station directory.
	ErrInvalidStation = errors.New("planner: unknown station")

	// ErrInvalidRoute is returned when the origin and destination do not
	// share a single line, or are the same station. Cross-line transfers
	// are left to the rider.
	ErrInvalidRoute = errors.New("planner: stations do not form a single-line route")
)
