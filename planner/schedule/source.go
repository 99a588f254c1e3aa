// Package schedule supplies train trips for a line, direction and day-type.
//
// Three interchangeable source shapes exist: a full static timetable keyed by
// station name, a frequency-generated table, and an explicit per-trip time
// table. Deployments pick exactly one; consumers only ever see the Source
// contract.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Line identifies one of the two Gautrain lines.
type Line string

// The two lines of the network.
const (
	LineNorthSouth Line = "north-south"
	LineAirport    Line = "airport"
)

// Direction is the direction of travel along a line's station ordering.
type Direction string

// Travel directions. Forward follows ascending station order.
const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// DayType is the binary timetable partition.
type DayType string

// Timetable day types. There is no holiday calendar; weekend covers it.
const (
	DayWeekday DayType = "weekday"
	DayWeekend DayType = "weekend"
)

// DayTypeOf classifies the supplied instant.
func DayTypeOf(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return DayWeekend
	default:
		return DayWeekday
	}
}

// StopTime is one station visit within a trip.
type StopTime struct {
	Name      string
	Arrival   time.Time
	Departure time.Time
}

// Trip is a single scheduled (or generated) train run between the queried
// origin and destination, with absolute times on the reference date.
type Trip struct {
	Departure time.Time
	Arrival   time.Time
	Is8Car    bool
	Stops     []StopTime
}

// Query selects the trips for one journey lookup.
type Query struct {
	Line        Line
	Direction   Direction
	DayType     DayType
	Origin      string
	Destination string

	// Reference supplies the calendar date (and location) that clock times
	// in the schedule document are resolved against.
	Reference time.Time
}

// Source is the contract every schedule variant implements.
type Source interface {
	Trips(ctx context.Context, q Query) ([]Trip, error)
}

// Station sequences per line, in forward order. The network topology is
// fixed; every schedule shape aligns its times to these sequences.
var lineStations = map[Line][]string{
	LineNorthSouth: {"Park", "Rosebank", "Sandton", "Marlboro", "Midrand", "Centurion", "Pretoria", "Hatfield"},
	LineAirport:    {"Sandton", "Marlboro", "Rhodesfield", "OR Tambo"},
}

// StationsForLine returns the forward-order station names on a line.
func StationsForLine(l Line) []string {
	seq := lineStations[l]
	out := make([]string, len(seq))
	copy(out, seq)
	return out
}

// path returns the station names visited travelling from origin to
// destination on the line, inclusive of both endpoints.
func path(l Line, dir Direction, origin, destination string) []string {
	seq := lineStations[l]
	oi, di := -1, -1
	for i, name := range seq {
		if strings.EqualFold(name, origin) {
			oi = i
		}
		if strings.EqualFold(name, destination) {
			di = i
		}
	}
	if oi < 0 || di < 0 || oi == di {
		return nil
	}

	var out []string
	if dir == DirectionReverse {
		for i := oi; i >= di; i-- {
			out = append(out, seq[i])
		}
		return out
	}
	for i := oi; i <= di; i++ {
		out = append(out, seq[i])
	}
	return out
}

// parseClock converts an "HH:MM" or "HH:MM:SS" string into an absolute
// instant on the reference date, in the reference's location.
func parseClock(clock string, ref time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed clock time %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed clock time %q: %w", clock, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed clock time %q: %w", clock, err)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed clock time %q: %w", clock, err)
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, fmt.Errorf("clock time %q out of range", clock)
	}

	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, second, 0, ref.Location()), nil
}
